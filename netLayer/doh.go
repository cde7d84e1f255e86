package netLayer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/e1732a364fed/ws_tunnel/utils"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const (
	DefaultDoHURL     = "https://cloudflare-dns.com/dns-query"
	DoHContentType    = "application/dns-message"
	DefaultDoHTimeout = time.Second * 10

	// dns over tcp 的消息 最长也就 65535
	maxDoHResponseLen = 64 * 1024
)

// DoHClient 以 RFC 8484 的 POST 方式 发送原始dns消息.
type DoHClient struct {
	URL    string
	Client *http.Client
}

func NewDoHClient(url string) *DoHClient {
	if url == "" {
		url = DefaultDoHURL
	}
	return &DoHClient{
		URL:    url,
		Client: &http.Client{Timeout: DefaultDoHTimeout},
	}
}

// Exchange 发送一个 dns 查询 并返回 原始的回复. 非 2xx 的回复 视为错误.
//
// query 不要求一定能被解析为 dns 消息, 我们只是在 debug 日志里 尽量把它解析出来.
func (c *DoHClient) Exchange(ctx context.Context, query []byte) ([]byte, error) {
	if ce := utils.CanLogDebug("DoH query"); ce != nil {
		ce.Write(dnsMsgFields(query)...)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(query))
	if err != nil {
		return nil, utils.ErrInErr{ErrDesc: "DoH new request failed", ErrDetail: err, Data: c.URL}
	}
	req.Header.Set("Content-Type", DoHContentType)
	req.Header.Set("Accept", DoHContentType)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, utils.ErrInErr{ErrDesc: "DoH request failed", ErrDetail: err, Data: c.URL}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.ErrInErr{ErrDesc: "DoH bad status", ErrDetail: utils.ErrInvalidData, Data: resp.StatusCode}
	}

	bs, err := io.ReadAll(io.LimitReader(resp.Body, maxDoHResponseLen))
	if err != nil {
		return nil, utils.ErrInErr{ErrDesc: "DoH read body failed", ErrDetail: err}
	}

	if ce := utils.CanLogDebug("DoH answer"); ce != nil {
		ce.Write(dnsMsgFields(bs)...)
	}
	return bs, nil
}

func dnsMsgFields(bs []byte) []zap.Field {
	m := new(dns.Msg)
	if err := m.Unpack(bs); err != nil {
		return []zap.Field{zap.Int("len", len(bs)), zap.NamedError("unpack", err)}
	}
	fs := []zap.Field{zap.Uint16("id", m.Id), zap.Int("answers", len(m.Answer)), zap.String("rcode", dns.RcodeToString[m.Rcode])}
	if len(m.Question) > 0 {
		q := m.Question[0]
		fs = append(fs, zap.String("name", q.Name), zap.String("type", dns.TypeToString[q.Qtype]))
	}
	return fs
}
