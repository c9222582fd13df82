// Package origin decides which browser origins may open relay connections.
package origin

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Any allows every origin.
const Any = "*"

// Normalize validates an Origin header value and returns it as
// scheme://host[:port], lowercased and without default ports.
func Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if !(scheme == "http" && n == 80) && !(scheme == "https" && n == 443) {
			host += ":" + strconv.FormatUint(n, 10)
		}
	} else if strings.HasSuffix(u.Host, ":") {
		return "", false
	}
	return scheme + "://" + host, true
}

// Checker matches the Origin header of WebSocket upgrades against an allow
// list. Requests without an Origin header come from native clients and are
// always allowed.
type Checker struct {
	any     bool
	allowed map[string]struct{}
}

// NewChecker builds a checker from allow list entries. An empty list allows
// every origin, as does an entry of "*".
func NewChecker(entries []string) (*Checker, error) {
	c := &Checker{allowed: make(map[string]struct{}, len(entries))}
	if len(entries) == 0 {
		c.any = true
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == Any {
			c.any = true
			continue
		}
		n, ok := Normalize(e)
		if !ok {
			return nil, fmt.Errorf("invalid allowed origin %q", e)
		}
		c.allowed[n] = struct{}{}
	}
	return c, nil
}

// Allowed reports whether an Origin header value passes.
func (c *Checker) Allowed(header string) bool {
	if strings.TrimSpace(header) == "" || c.any {
		return true
	}
	n, ok := Normalize(header)
	if !ok {
		return false
	}
	_, ok = c.allowed[n]
	return ok
}

// CheckRequest adapts the checker to websocket.Upgrader.CheckOrigin.
func (c *Checker) CheckRequest(r *http.Request) bool {
	return c.Allowed(r.Header.Get("Origin"))
}
