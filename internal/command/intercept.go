package command

import (
	"fmt"

	"github.com/rshield/rshield/internal/proxy"
)

// RequestForward implements request_forward: delivers a forward
// verdict for a pending request-gate interception, optionally
// rewriting method, URL, headers, or body before it reaches the
// origin.
func (s *Surface) RequestForward(id string, method, url string, headers map[string]string, body string) error {
	if s.Proxy == nil {
		return errNoProxy
	}
	v := proxy.Verdict{Method: method, URL: url, Headers: headers, Body: body}
	if !s.Proxy.RequestGate.Decide(id, v) {
		return fmt.Errorf("command: request_forward: no pending interception with id %s", id)
	}
	return nil
}

// RequestDrop implements request_drop: the client receives a 403
// instead of the request reaching the origin (spec §4.3).
func (s *Surface) RequestDrop(id string) error {
	if s.Proxy == nil {
		return errNoProxy
	}
	if !s.Proxy.RequestGate.Decide(id, proxy.Verdict{Drop: true}) {
		return fmt.Errorf("command: request_drop: no pending interception with id %s", id)
	}
	return nil
}

// ResponseForward implements response_forward: delivers a forward
// verdict for a pending response-gate interception, optionally
// rewriting status, headers, or body before it reaches the client.
func (s *Surface) ResponseForward(id string, status int, headers map[string]string, body string) error {
	if s.Proxy == nil {
		return errNoProxy
	}
	v := proxy.Verdict{Status: status, Headers: headers, Body: body}
	if !s.Proxy.ResponseGate.Decide(id, v) {
		return fmt.Errorf("command: response_forward: no pending interception with id %s", id)
	}
	return nil
}

// ResponseDrop implements response_drop: the client connection is
// closed rather than delivered a truncated body (spec §9's resolved
// Open Question).
func (s *Surface) ResponseDrop(id string) error {
	if s.Proxy == nil {
		return errNoProxy
	}
	if !s.Proxy.ResponseGate.Decide(id, proxy.Verdict{Drop: true}) {
		return fmt.Errorf("command: response_drop: no pending interception with id %s", id)
	}
	return nil
}
