package metadata

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"

	"becoming/pkg/requestcontext"
)

type contextKeyClient struct{}

// Client summarises the User-Agent of the caller.
type Client struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// String renders "Browser on OS", or "bot" for crawlers.
func (c Client) String() string {
	if c.Bot {
		return "bot"
	}
	switch {
	case c.Browser != "" && c.OS != "":
		return c.Browser + " on " + c.OS
	case c.Browser != "":
		return c.Browser
	default:
		return "unknown"
	}
}

// ParseUserAgent extracts browser and platform details from a User-Agent.
func ParseUserAgent(raw string) Client {
	if raw == "" {
		return Client{}
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	return Client{
		Browser: browser,
		OS:      ua.OSInfo().Name,
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
// Forwarding headers are ignored; use Middleware behind a proxy.
func ClientMetadata(next http.Handler) http.Handler {
	return Middleware(nil)(next)
}

// Middleware is ClientMetadata that honours X-Forwarded-For and X-Real-IP
// when the immediate peer is inside one of the trusted prefixes.
// This middleware should be applied early in the chain.
func Middleware(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent := r.Header.Get("User-Agent")
			ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r, trusted), userAgent)
			ctx = context.WithValue(ctx, contextKeyClient{}, ParseUserAgent(userAgent))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClient retrieves the parsed User-Agent from the context.
func GetClient(ctx context.Context) Client {
	c, _ := LookupClient(ctx)
	return c
}

// LookupClient reports whether ClientMetadata ran for this context.
func LookupClient(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(contextKeyClient{}).(Client)
	return c, ok
}

// ClientIPFromRequest returns the caller address. The peer in RemoteAddr is
// used unless it is a trusted proxy, in which case X-Forwarded-For is walked
// from the right past every trusted hop, falling back to X-Real-IP.
func ClientIPFromRequest(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r.RemoteAddr)
	if peer == "" {
		return "unknown"
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			client = hop
			if !isTrusted(hop, trusted) {
				break
			}
		}
		if client != "" {
			return client
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// ParseTrustedProxies accepts CIDRs or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// RemoteAddr is "ip:port" or "[::1]:port".
func remoteHost(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
