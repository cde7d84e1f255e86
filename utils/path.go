package utils

import (
	"os"
	"path/filepath"
)

// GetFilePath 按以下顺序查找文件, 找不到返回 "":
//
//  0. 绝对路径 直接检查
//  1. 工作目录
//  2. 可执行文件 所在目录
func GetFilePath(fileName string) string {
	if fileName == "" {
		return ""
	}

	if filepath.IsAbs(fileName) {
		if _, err := os.Stat(fileName); err == nil {
			return fileName
		}
		return ""
	}

	if workingDir, err := os.Getwd(); err == nil {
		p := filepath.Join(workingDir, fileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if execFile, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(execFile), fileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
