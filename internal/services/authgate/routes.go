// Package authgate decides, per request, whether to proceed or redirect based on the session.
package authgate

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// DefaultRefreshThreshold is how close to expiry a session is refreshed.
	DefaultRefreshThreshold = 300 * time.Second

	// DefaultLookupTimeout bounds each identity provider call made by the gate.
	DefaultLookupTimeout = 5 * time.Second
)

// RouteClass is the result of classifying a request path.
type RouteClass int

const (
	// RouteProtected paths require a valid session.
	RouteProtected RouteClass = iota
	// RoutePublic paths never trigger a session lookup, except auth pages.
	RoutePublic
)

// String returns the metric/log label of the class.
func (c RouteClass) String() string {
	if c == RoutePublic {
		return "public"
	}
	return "protected"
}

// RouteConfig is the injectable policy consumed by the gate.
type RouteConfig struct {
	// PublicPaths are matched exactly, ignoring a trailing slash.
	PublicPaths []string
	// PublicPrefixes are matched with a prefix test, e.g. "/static/".
	PublicPrefixes []string
	// AuthPaths are sign-in style pages. They are public, but a visitor with
	// a valid session is sent to AuthenticatedPath instead.
	AuthPaths []string

	RefreshThreshold  time.Duration
	SignInPath        string
	AuthenticatedPath string
	LookupTimeout     time.Duration
}

// DefaultRouteConfig returns the gateway's standard route policy.
func DefaultRouteConfig() RouteConfig {
	return RouteConfig{
		PublicPaths: []string{
			"/",
			"/health",
			"/ready",
			"/live",
			"/metrics",
			"/favicon.ico",
			"/robots.txt",
			"/blog",
			"/auth/signout",
			"/auth/callback",
		},
		PublicPrefixes: []string{
			"/static/",
			"/assets/",
			"/blog/",
			"/api/public/",
			"/docs/",
		},
		AuthPaths:         []string{"/auth/signin", "/auth/signup"},
		RefreshThreshold:  DefaultRefreshThreshold,
		SignInPath:        "/auth/signin",
		AuthenticatedPath: "/dashboard",
		LookupTimeout:     DefaultLookupTimeout,
	}
}

// Validate rejects configurations the gate cannot operate with.
func (c RouteConfig) Validate() error {
	if c.SignInPath == "" || !strings.HasPrefix(c.SignInPath, "/") {
		return fmt.Errorf("sign-in path must be an absolute path, got %q", c.SignInPath)
	}
	if c.AuthenticatedPath == "" || !strings.HasPrefix(c.AuthenticatedPath, "/") {
		return fmt.Errorf("authenticated path must be an absolute path, got %q", c.AuthenticatedPath)
	}
	if c.RefreshThreshold < 0 {
		return fmt.Errorf("refresh threshold must not be negative")
	}
	if c.LookupTimeout < 0 {
		return fmt.Errorf("lookup timeout must not be negative")
	}
	// A protected sign-in page would redirect to itself forever.
	if c.Classify(c.SignInPath) != RoutePublic {
		return fmt.Errorf("sign-in path %s must be public", c.SignInPath)
	}
	if c.IsAuthPath(c.AuthenticatedPath) {
		return fmt.Errorf("authenticated path %s must not be an auth page", c.AuthenticatedPath)
	}
	return nil
}

// Classify maps a request path to exactly one class.
// The path is cleaned first so dot segments cannot escape a public prefix.
func (c RouteConfig) Classify(p string) RouteClass {
	p = cleanPath(p)

	for _, public := range c.PublicPaths {
		if samePage(p, public) {
			return RoutePublic
		}
	}
	for _, auth := range c.AuthPaths {
		if samePage(p, auth) {
			return RoutePublic
		}
	}
	for _, prefix := range c.PublicPrefixes {
		if strings.HasPrefix(p, prefix) {
			return RoutePublic
		}
	}
	return RouteProtected
}

// IsAuthPath reports whether p is one of the configured auth pages.
func (c RouteConfig) IsAuthPath(p string) bool {
	p = cleanPath(p)
	for _, auth := range c.AuthPaths {
		if samePage(p, auth) {
			return true
		}
	}
	return false
}

// cleanPath normalises p to a rooted path without dot segments.
// A trailing slash is kept so "/static/" style prefixes still match directories.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// samePage compares two paths for exact-match rules, so "/auth/signin/" and "/auth/signin" are one page.
func samePage(a, b string) bool {
	return trimSlash(a) == trimSlash(b)
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return p
}
