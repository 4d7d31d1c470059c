package cors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidOrigin is returned for values that are not a scheme://host[:port] origin
	ErrInvalidOrigin = errors.New("invalid origin")

	defaultPorts = map[string]string{
		"http":  "80",
		"https": "443",
	}
)

// NormalizeOrigin returns the canonical form of an origin for exact comparison.
//
// The scheme and host are lower-cased, internationalized host names are
// converted to their ASCII (punycode) form, and the scheme's default port is
// dropped. Values carrying a path, query, fragment or user info are rejected:
// an origin is scheme, host and port only.
func NormalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOrigin)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}
	if u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return "", fmt.Errorf("%w: %q is not scheme://host", ErrInvalidOrigin, origin)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery || u.User != nil {
		return "", fmt.Errorf("%w: %q must not contain a path, query, fragment or user info", ErrInvalidOrigin, origin)
	}

	scheme := strings.ToLower(u.Scheme)
	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}

	port := u.Port()
	if port == defaultPorts[scheme] {
		port = ""
	}

	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, nil
	}
	return scheme + "://" + host, nil
}

func normalizeHost(host string) (string, error) {
	if host == "" {
		return "", errors.New("empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", fmt.Errorf("host %q: %w", host, err)
	}
	return strings.ToLower(ascii), nil
}
