package trac

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
)

// File permissions for persisted sessions. Cookies are credentials
// material; keep them owner-only.
const (
	sessionFilePerms = 0o600
	sessionDirPerms  = 0o700
)

// sessionFile is the on-disk format: the cookies valid for the remote's
// base URL at the time the session was saved.
type sessionFile struct {
	Cookies []sessionCookie `json:"cookies"`
}

type sessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionRegistry stores authenticated sessions on disk, keyed by
// (host, principal), so a later invocation reuses a cached session instead
// of re-authenticating.
type SessionRegistry struct {
	dir    string
	logger *slog.Logger
}

// NewSessionRegistry creates a registry rooted at dir.
func NewSessionRegistry(dir string, logger *slog.Logger) *SessionRegistry {
	return &SessionRegistry{dir: dir, logger: logger}
}

// Open loads the session for (base.Host, principal), or starts an empty one
// when none is cached. The returned session owns exactly one cookie jar;
// call Save on every exit path so the next invocation can reuse it.
func (r *SessionRegistry) Open(base *url.URL, principal string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("trac: creating cookie jar: %w", err)
	}

	s := &Session{
		jar:    jar,
		base:   base,
		path:   filepath.Join(r.dir, sessionKey(base, principal)+".json"),
		logger: r.logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// sessionKey derives the registry filename for a (host, principal) pair.
// Hashed so hostnames and usernames never need filesystem escaping.
func sessionKey(base *url.URL, principal string) string {
	sum := sha256.Sum256([]byte(base.Host + "\n" + principal))
	return hex.EncodeToString(sum[:8])
}

// Session is one persistent authenticated session against a remote host.
type Session struct {
	jar    http.CookieJar
	base   *url.URL
	path   string
	logger *slog.Logger
}

// Jar returns the session's cookie jar for installation into an http.Client.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// load hydrates the jar from the registry file, if one exists.
func (s *Session) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("trac: reading session %s: %w", s.path, err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("trac: decoding session %s: %w", s.path, err)
	}

	cookies := make([]*http.Cookie, 0, len(sf.Cookies))
	for _, c := range sf.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}

	s.jar.SetCookies(s.base, cookies)
	s.logger.Debug("session restored",
		slog.String("host", s.base.Host), slog.Int("cookies", len(cookies)))

	return nil
}

// Save persists the jar's cookies for the base URL atomically
// (write-to-temp + rename) with 0600 permissions.
func (s *Session) Save() error {
	sf := sessionFile{}
	for _, c := range s.jar.Cookies(s.base) {
		sf.Cookies = append(sf.Cookies, sessionCookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("trac: encoding session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, sessionDirPerms); err != nil {
		return fmt.Errorf("trac: creating session directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("trac: creating temp session file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, sessionFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("trac: setting session permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("trac: writing session: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("trac: closing session file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("trac: renaming session file: %w", err)
	}

	success = true
	s.logger.Debug("session saved", slog.String("host", s.base.Host))

	return nil
}

// Discard deletes the persisted session and empties the jar, forcing the
// next request to authenticate from scratch.
func (s *Session) Discard() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("trac: removing session %s: %w", s.path, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("trac: creating cookie jar: %w", err)
	}

	s.jar = jar

	return nil
}
