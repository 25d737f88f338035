package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Edge headers carrying the client location.
const (
	headerForwardedFor  = "X-Forwarded-For"
	headerRealIP        = "X-Real-IP"
	headerVercelCountry = "X-Vercel-IP-Country"
	headerVercelCity    = "X-Vercel-IP-City"
	headerCFCountry     = "CF-IPCountry"
)

type clientLocation struct {
	IP      string
	Country string
	City    string
}

// locate reads the client address and edge geo headers. Header values are
// URL-encoded by some edges.
func locate(r *http.Request) clientLocation {
	loc := clientLocation{
		Country: headerValue(r, headerVercelCountry),
		City:    headerValue(r, headerVercelCity),
	}
	if loc.Country == "" {
		loc.Country = headerValue(r, headerCFCountry)
	}

	if fwd := r.Header.Get(headerForwardedFor); fwd != "" {
		loc.IP = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if loc.IP == "" {
		loc.IP = strings.TrimSpace(r.Header.Get(headerRealIP))
	}
	if loc.IP == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			loc.IP = host
		} else {
			loc.IP = r.RemoteAddr
		}
	}
	return loc
}

func headerValue(r *http.Request, key string) string {
	v := strings.TrimSpace(r.Header.Get(key))
	if decoded, err := url.QueryUnescape(v); err == nil {
		return decoded
	}
	return v
}
