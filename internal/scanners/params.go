package scanners

import (
	"net/url"
	"strings"

	"github.com/rshield/rshield/internal/model"
)

// requestParams extracts query-string and (for form-encoded bodies)
// body parameters from a request, the parameter surface every
// built-in scanner correlates against response content.
func requestParams(req model.InterceptedRequest) map[string]string {
	params := make(map[string]string)

	if u, err := url.Parse(req.URL); err == nil {
		for k, vs := range u.Query() {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}
	}

	ct := req.Headers["Content-Type"]
	if ct == "" {
		ct = req.Headers["content-type"]
	}
	if strings.Contains(ct, "application/x-www-form-urlencoded") {
		if values, err := url.ParseQuery(req.Body); err == nil {
			for k, vs := range values {
				if len(vs) > 0 {
					params[k] = vs[0]
				}
			}
		}
	}
	return params
}
