// Package request extracts client metadata from incoming HTTP requests.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ResolveClientIP records the client address for the rest of the chain.
// Every trusted proxy appends the peer it received the request from to
// X-Forwarded-For, so with hops proxies in front the client is the hops-th
// entry from the right. Entries further left are client supplied and never
// read. With hops 0 the connection's remote address is used.
func ResolveClientIP(hops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, resolve(r, hops))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(r *http.Request, hops int) string {
	if hops > 0 {
		if hopsSeen := forwardedFor(r.Header); len(hopsSeen) > 0 {
			i := len(hopsSeen) - hops
			if i < 0 {
				i = 0
			}
			return hopsSeen[i]
		}
	}
	return remoteHost(r)
}

// forwardedFor flattens every X-Forwarded-For header line in order.
func forwardedFor(h http.Header) []string {
	var out []string
	for _, line := range h.Values("X-Forwarded-For") {
		for _, p := range strings.Split(line, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP returns the address chosen by ResolveClientIP, or the remote
// address when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return remoteHost(r)
}

// Meta is the optional visitor metadata stored with clicks and views.
type Meta struct {
	IPAddress *string
	UserAgent *string
	Referer   *string
}

func MetaFrom(r *http.Request) Meta {
	return Meta{
		IPAddress: nonEmpty(ClientIP(r)),
		UserAgent: nonEmpty(truncate(r.UserAgent(), 512)),
		Referer:   nonEmpty(truncate(r.Referer(), 2048)),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
