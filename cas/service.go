package cas

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

const (
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXForwardedHost  = "X-Forwarded-Host"
	HeaderXForwardedProto = "X-Forwarded-Proto"
	HeaderXRealIP         = "X-Real-IP"
)

// Service builds the service URL of a request, i.e. the absolute request URL
// with the ticket parameter removed.
type Service struct {
	TicketParam string

	// Base, when set, replaces the scheme and host of every request.
	Base *url.URL

	// TrustForwarded lets X-Forwarded-Proto and X-Forwarded-Host override the
	// scheme and host. Enable it only behind a proxy that sets both.
	TrustForwarded bool
}

// ParseServerName parses a server name such as https://app.example.org:8443
// into a Base for Service.
func ParseServerName(serverName string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(serverName))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("cas: server name '" + serverName + "' must start with http:// or https://")
	}
	if u.Host == "" {
		return nil, errors.New("cas: server name '" + serverName + "' has no host")
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return nil, errors.New("cas: server name '" + serverName + "' must not carry a path or query")
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// URL returns the service URL of req.
func (s *Service) URL(req *http.Request) string {
	u := url.URL{
		Scheme:   "http",
		Host:     req.Host,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}
	if req.TLS != nil {
		u.Scheme = "https"
	}
	if s.Base != nil {
		u.Scheme = s.Base.Scheme
		u.Host = s.Base.Host
	} else if s.TrustForwarded {
		if proto := strings.ToLower(firstValue(req.Header.Get(HeaderXForwardedProto))); proto == "http" || proto == "https" {
			u.Scheme = proto
		}
		if host := firstValue(req.Header.Get(HeaderXForwardedHost)); host != "" {
			u.Host = host
		}
	}

	u.RawQuery = removeParam(u.RawQuery, s.TicketParam)
	return u.String()
}

// ServiceURL returns the service URL of req built from the request itself.
// Proxy headers are ignored.
func ServiceURL(req *http.Request, ticketParam string) string {
	s := Service{TicketParam: ticketParam}
	return s.URL(req)
}

// removeParam drops name from a raw query and keeps the order of the rest.
func removeParam(rawQuery, name string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key := part
		if idx := strings.IndexByte(key, '='); idx >= 0 {
			key = key[:idx]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if key == name {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

// RealIP returns the client address, honouring proxy headers.
func RealIP(req *http.Request) string {
	ra := req.RemoteAddr
	if ip := firstValue(req.Header.Get(HeaderXForwardedFor)); ip != "" {
		ra = ip
	} else if ip := req.Header.Get(HeaderXRealIP); ip != "" {
		ra = ip
	} else {
		ra, _, _ = net.SplitHostPort(ra)
	}
	return ra
}

func firstValue(s string) string {
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
