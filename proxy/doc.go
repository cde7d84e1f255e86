/*
Package proxy 定义了 内层代理协议 所需的必备组件.

Layer Definition

一个隧道由三部分组成: 基础连接 (tcp), websocket, 具体协议 (trojan, vless, shadowsocks).
websocket 只负责 把字节流 分成一条条消息; 具体协议 则把 真实目标 写在第一条消息的头部.

	3 ｜ tcp data
	--------------------
	2 ｜ trojan/vless/shadowsocks
	--------------------
	1 ｜ ws
	--------------------
	0 ｜ tcp
	--------------------

本包只管 第2层: 先用 Sniff 从第一条消息里 判断出协议, 然后交给对应的 Parser 解析出 RequestHeader.
每个具体协议 在自己的子包里实现 Parser, 并在 init 里 用 RegisterParser 注册.

Parser 只读取 它拿到的那一段数据, 不做任何io, 所有越界访问 都会变成 ErrProtocolParse, 绝不会panic.
*/
package proxy
