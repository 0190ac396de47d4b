package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenSource is one place a bearer token may be kept.
type TokenSource interface {
	Name() string
	// Load returns the stored token, or "" when the source is empty.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileSource keeps the token in a file readable only by the current user.
type FileSource struct {
	path string
}

// NewFileSource constructs a FileSource at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileSource) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("session: create state dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return fmt.Errorf("session: write token file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("session: replace token file: %w", err)
	}
	return nil
}

func (f *FileSource) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove token file: %w", err)
	}
	return nil
}

// MemorySource keeps the token for the lifetime of the process.
type MemorySource struct {
	mu    sync.Mutex
	token string
}

func (m *MemorySource) Name() string { return "memory" }

func (m *MemorySource) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemorySource) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemorySource) Clear() error {
	return m.Save("")
}

// CookieSource reads the token from a cookie set by the web application.
type CookieSource struct {
	jar    http.CookieJar
	url    *url.URL
	cookie string
}

// NewCookieSource constructs a CookieSource for the named cookie scoped to u.
func NewCookieSource(jar http.CookieJar, u *url.URL, cookie string) *CookieSource {
	return &CookieSource{jar: jar, url: u, cookie: cookie}
}

func (c *CookieSource) Name() string { return "cookie" }

func (c *CookieSource) Load() (string, error) {
	for _, ck := range c.jar.Cookies(c.url) {
		if ck.Name == c.cookie {
			return ck.Value, nil
		}
	}
	return "", nil
}

func (c *CookieSource) Save(token string) error {
	c.jar.SetCookies(c.url, []*http.Cookie{{Name: c.cookie, Value: token, Path: "/"}})
	return nil
}

func (c *CookieSource) Clear() error {
	c.jar.SetCookies(c.url, []*http.Cookie{{Name: c.cookie, Value: "", Path: "/", MaxAge: -1}})
	return nil
}
