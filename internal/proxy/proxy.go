// Package proxy implements the intercepting HTTPS proxy: a local CA
// backed MITM listener with synchronous, user-gated request and
// response interception points.
package proxy

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/elazarl/goproxy"

	"github.com/rshield/rshield/internal/ca"
	"github.com/rshield/rshield/internal/errs"
	"github.com/rshield/rshield/internal/model"
)

// Proxy is the intercepting HTTPS proxy. The orchestrator and the UI
// never reach into its internal maps directly — only through the
// RequestForward/RequestDrop/ResponseForward/ResponseDrop commands
// (spec §4.3 lifecycle).
type Proxy struct {
	ListenAddr   string
	InterceptTLS bool

	CA      *ca.CA
	Rules   []Rule
	History *History

	RequestGate  *Gate
	ResponseGate *Gate

	// Traffic is the bounded proxy→passive-scanner channel (spec §5:
	// capacity 100, senders block, never drop).
	Traffic chan TrafficPair

	server   *http.Server
	listener net.Listener
}

// TrafficPair is one (request, response) observation handed to the
// passive scanner.
type TrafficPair struct {
	Request  model.InterceptedRequest
	Response model.InterceptedResponse
}

// New constructs a Proxy. caDir is passed straight through to ca.New.
func New(listenAddr string, interceptTLS bool, caDir string) (*Proxy, error) {
	c := ca.New(caDir)
	if err := c.EnsureCA(); err != nil {
		return nil, fmt.Errorf("ensure CA: %w", err)
	}
	return &Proxy{
		ListenAddr:   listenAddr,
		InterceptTLS: interceptTLS,
		CA:           c,
		History:      NewHistory(),
		RequestGate:  NewGate(),
		ResponseGate: NewGate(),
		Traffic:      make(chan TrafficPair, 100),
	}, nil
}

// TryBind succeeds only if the configured port is currently free,
// without holding the listener open (spec §4.3 lifecycle: try-bind).
func (p *Proxy) TryBind() error {
	l, err := net.Listen("tcp", p.ListenAddr)
	if err != nil {
		return fmt.Errorf("port unavailable: %w", err)
	}
	return l.Close()
}

func (p *Proxy) newGoproxy() *goproxy.ProxyHttpServer {
	gp := goproxy.NewProxyHttpServer()
	gp.Verbose = false

	if p.InterceptTLS {
		gp.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(
			func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
				return &goproxy.ConnectAction{
					Action:    goproxy.ConnectMitm,
					TLSConfig: p.tlsConfigForHost,
				}, host
			}))
	}

	gp.OnRequest().DoFunc(func(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		return p.handleRequest(req, ctx)
	})
	gp.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		return p.handleResponse(resp, ctx)
	})

	return gp
}

// tlsConfigForHost mints (or retrieves from cache) a leaf certificate
// for host and returns a tls.Config presenting it — goproxy calls this
// once per CONNECT tunnel it decides to MITM.
func (p *Proxy) tlsConfigForHost(host string, ctx *goproxy.ProxyCtx) (*tls.Config, error) {
	hostOnly := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostOnly = h
	}

	certPEM, keyPEM, err := p.CA.IssueLeafCert(hostOnly)
	if err != nil {
		return nil, errs.Wrap(errs.Protocol, fmt.Sprintf("issue leaf for %s", hostOnly), err)
	}
	leaf, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errs.Wrap(errs.Protocol, "load leaf keypair", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{leaf}}, nil
}

// Start begins serving until Stop is called. Start blocks until the
// listener closes.
func (p *Proxy) Start() error {
	l, err := net.Listen("tcp", p.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.ListenAddr, err)
	}
	p.listener = l
	p.server = &http.Server{Handler: p.newGoproxy()}
	log.Printf("[proxy] listening on %s (tls_intercept=%v)", p.ListenAddr, p.InterceptTLS)

	err = p.server.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener and drains every pending interception by
// responding drop (spec §4.3 lifecycle).
func (p *Proxy) Stop() error {
	p.RequestGate.DrainAsDrop()
	p.ResponseGate.DrainAsDrop()
	if p.server != nil {
		return p.server.Close()
	}
	return nil
}

func (p *Proxy) handleRequest(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	facts := requestFacts(req)
	if !Evaluate(p.Rules, facts) {
		return req, nil
	}

	headers := flattenHeader(req.Header)
	body := readAndRestore(&req.Body)

	method, rawURL := req.Method, req.URL.String()
	id, await := p.RequestGate.Open(func(id string) any {
		return toInterceptedRequest(id, method, rawURL, headers, body)
	})
	ctx.UserData = id

	verdict := await()
	if verdict.Drop {
		return req, goproxy.NewResponse(req, goproxy.ContentTypeText, http.StatusForbidden, "request dropped by interception rule")
	}

	if verdict.Method != "" {
		req.Method = verdict.Method
	}
	if verdict.URL != "" {
		if u, err := req.URL.Parse(verdict.URL); err == nil {
			req.URL = u
		}
	}
	if verdict.Headers != nil {
		req.Header = http.Header{}
		for k, v := range verdict.Headers {
			req.Header.Set(k, v)
		}
	}
	if verdict.Body != "" {
		req.Body = io.NopCloser(strings.NewReader(verdict.Body))
		req.ContentLength = int64(len(verdict.Body))
	}

	return req, nil
}

func (p *Proxy) handleResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	if resp == nil {
		return resp
	}
	facts := requestFacts(ctx.Req)
	facts.StatusCode = resp.StatusCode
	if !Evaluate(p.Rules, facts) {
		p.record(ctx.Req, resp)
		return resp
	}

	headers := flattenHeader(resp.Header)
	body := readAndRestore(&resp.Body)

	relatedID, _ := ctx.UserData.(string)
	status := resp.StatusCode
	_, await := p.ResponseGate.Open(func(id string) any {
		return toInterceptedResponse(id, relatedID, status, headers, body)
	})

	verdict := await()
	if verdict.Drop {
		// Open Question resolved (spec §9): close the client connection
		// rather than deliver a truncated body.
		ctx.Resp = nil
		if ctx.ResponseWriter != nil {
			if hj, ok := ctx.ResponseWriter.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
				}
			}
		}
		return nil
	}

	if verdict.Status != 0 {
		resp.StatusCode = verdict.Status
	}
	if verdict.Headers != nil {
		resp.Header = http.Header{}
		for k, v := range verdict.Headers {
			resp.Header.Set(k, v)
		}
	}
	if verdict.Body != "" {
		resp.Body = io.NopCloser(strings.NewReader(verdict.Body))
		resp.ContentLength = int64(len(verdict.Body))
	}

	p.record(ctx.Req, resp)
	return resp
}

func (p *Proxy) record(req *http.Request, resp *http.Response) {
	if req == nil || resp == nil {
		return
	}
	reqBody := readAndRestore(&req.Body)
	respBody := readAndRestore(&resp.Body)

	rec := model.ProxyRequestRecord{
		ID:              newRecordID(),
		Method:          req.Method,
		Host:            req.Host,
		Path:            req.URL.Path,
		URL:             req.URL.String(),
		Status:          resp.StatusCode,
		TimestampMillis: time.Now().UnixMilli(),
		RequestHeaders:  flattenHeader(req.Header),
		RequestBody:     reqBody,
		ResponseHeaders: flattenHeader(resp.Header),
		ResponseBody:    respBody,
	}
	p.History.Add(rec)

	p.Traffic <- TrafficPair{
		Request:  toInterceptedRequest(rec.ID, rec.Method, rec.URL, rec.RequestHeaders, rec.RequestBody),
		Response: toInterceptedResponse(newRecordID(), rec.ID, rec.Status, rec.ResponseHeaders, rec.ResponseBody),
	}
}

func requestFacts(req *http.Request) RequestFacts {
	if req == nil {
		return RequestFacts{}
	}
	host := req.URL.Hostname()
	ext := filepath.Ext(req.URL.Path)
	protocol := "http"
	if req.TLS != nil {
		protocol = "https"
	}
	return RequestFacts{
		Domain:    host,
		IP:        host,
		Protocol:  protocol,
		Method:    req.Method,
		Extension: ext,
		Path:      req.URL.Path,
		Headers:   flattenHeader(req.Header),
	}
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func readAndRestore(body *io.ReadCloser) string {
	if body == nil || *body == nil {
		return ""
	}
	data, err := io.ReadAll(*body)
	if err != nil {
		return ""
	}
	(*body).Close()
	*body = io.NopCloser(strings.NewReader(string(data)))
	return string(data)
}

var recordSeq uint64

func newRecordID() string {
	return fmt.Sprintf("preq-%d-%d", time.Now().UnixNano(), recordSeq)
}
