package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/mtr002/bansu-harness/internal/outcome"
)

// DefaultURL is used when no target URL is configured
const DefaultURL = "http://localhost:8080"

// Endpoint describes where the job service lives
type Endpoint struct {
	Host   string
	Port   int
	Prefix string
	Scheme string
}

// Resolve parses a target URL into an Endpoint. It never touches the
// network.
func Resolve(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, invalid(raw, err.Error())
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, invalid(raw, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, invalid(raw, "missing host")
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, invalid(raw, fmt.Sprintf("invalid port %q", p))
		}
	}

	return Endpoint{
		Host:   host,
		Port:   port,
		Prefix: strings.TrimRight(u.Path, "/"),
		Scheme: scheme,
	}, nil
}

func invalid(raw, reason string) error {
	return outcome.New(outcome.KindValidation, outcome.StageConfig,
		fmt.Sprintf("invalid target URL %q: %s", raw, reason), nil)
}

// Secure reports whether the endpoint uses TLS
func (e Endpoint) Secure() bool {
	return e.Scheme == "https"
}

func (e Endpoint) hostPort() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// HTTPURL composes the URL of an HTTP route under the endpoint's prefix
func (e Endpoint) HTTPURL(path string) string {
	return fmt.Sprintf("%s://%s%s%s", e.Scheme, e.hostPort(), e.Prefix, path)
}

// WebSocketURL composes the URL of a WebSocket route, ws or wss to match
// the HTTP scheme.
func (e Endpoint) WebSocketURL(path string) string {
	scheme := "ws"
	if e.Secure() {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s%s", scheme, e.hostPort(), e.Prefix, path)
}

func (e Endpoint) String() string {
	return e.HTTPURL("")
}
