package testutils

import (
	"net/http"
	"sync"
)

// CookieJar is an in-memory identity.Cookies for service-level tests.
// Set cookies with MaxAge < 0 delete the entry.
type CookieJar struct {
	mu      sync.Mutex
	values  map[string]string
	Written []*http.Cookie
}

// NewCookieJar creates a jar holding the given request cookies.
func NewCookieJar(values map[string]string) *CookieJar {
	jar := &CookieJar{values: make(map[string]string)}
	for k, v := range values {
		jar.values[k] = v
	}
	return jar
}

// Get returns the named cookie value.
func (j *CookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.values[name]
	return v, ok
}

// Set records the cookie and applies it to the jar.
func (j *CookieJar) Set(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Written = append(j.Written, cookie)
	if cookie.MaxAge < 0 {
		delete(j.values, cookie.Name)
		return
	}
	j.values[cookie.Name] = cookie.Value
}

// Has reports whether the jar currently holds name.
func (j *CookieJar) Has(name string) bool {
	_, ok := j.Get(name)
	return ok
}
