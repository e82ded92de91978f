package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ExtensionFunc derives a domain extension from a URL, nil when none.
type ExtensionFunc func(url *string) *string

// ExtensionStrategy resolves the EXTENSION_STRATEGY setting.
func ExtensionStrategy(name string) (ExtensionFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "heuristic":
		return ExtractDomainExtension, nil
	case "publicsuffix":
		return PublicSuffixExtension, nil
	default:
		return nil, fmt.Errorf("unknown extension strategy %q", name)
	}
}

// ExtractDomainExtension takes the last two labels when the second-to-last
// one has two characters ("co.uk"), else the last label. Two-letter
// second-level names such as "io.com" are misread as a compound suffix.
func ExtractDomainExtension(raw *string) *string {
	if raw == nil {
		return nil
	}
	parts := strings.Split(domainOf(*raw), ".")

	var ext string
	switch {
	case len(parts) > 2 && len(parts[len(parts)-2]) == 2:
		ext = parts[len(parts)-2] + "." + parts[len(parts)-1]
	case len(parts) > 1:
		ext = parts[len(parts)-1]
	default:
		return nil
	}
	return &ext
}

// PublicSuffixExtension asks the public suffix list instead of guessing.
func PublicSuffixExtension(raw *string) *string {
	if raw == nil {
		return nil
	}
	host := strings.ToLower(hostOf(*raw))
	if !strings.Contains(host, ".") {
		return nil
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == "" || suffix == host {
		return nil
	}
	return &suffix
}

// domainOf mirrors how a URL without a scheme parses: no host, so the
// whole path stands in for the domain.
func domainOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		switch {
		case u.Host != "":
			return u.Host
		case u.Path != "":
			return u.Path
		default:
			return u.Opaque
		}
	}
	// net/url rejects hosts with spaces and similar; cut the authority by hand
	rest := raw
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[i+2:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
	}
	return rest
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Hostname()
	}
	host := domainOf(raw)
	if j := strings.IndexAny(host, "/?#"); j >= 0 {
		host = host[:j]
	}
	if j := strings.LastIndex(host, ":"); j >= 0 {
		host = host[:j]
	}
	return host
}
