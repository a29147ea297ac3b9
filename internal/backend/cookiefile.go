package backend

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// cookieFileName is the auth-dir file carrying the backend session cookie
// between process runs. It is transport state owned by this client; the
// auth-storage snapshot stays limited to user/authenticated/expiry.
const cookieFileName = "backend-session.json"

type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
}

// cookieFile saves and restores the cookies a jar holds for the backend base URL.
type cookieFile struct {
	path string
	base *url.URL
}

func newCookieFile(authDir string, base *url.URL) *cookieFile {
	return &cookieFile{path: filepath.Join(authDir, cookieFileName), base: base}
}

// restore loads previously saved cookies into the jar. Missing or corrupt
// files are ignored; the next login simply starts a fresh session.
func (f *cookieFile) restore(jar http.CookieJar) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("read %s failed: %v", f.path, err)
		}
		return
	}
	var saved []persistedCookie
	if err = json.Unmarshal(data, &saved); err != nil {
		log.Warnf("parse %s failed: %v", f.path, err)
		return
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, pc := range saved {
		if !pc.Expires.IsZero() && pc.Expires.Before(time.Now()) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:    pc.Name,
			Value:   pc.Value,
			Path:    pc.Path,
			Domain:  pc.Domain,
			Expires: pc.Expires,
			Secure:  pc.Secure,
		})
	}
	if len(cookies) > 0 {
		jar.SetCookies(f.base, cookies)
	}
}

// persist writes the jar's cookies for the backend base URL to disk.
func (f *cookieFile) persist(jar http.CookieJar) {
	if jar == nil {
		return
	}
	cookies := jar.Cookies(f.base)
	saved := make([]persistedCookie, 0, len(cookies))
	for _, c := range cookies {
		saved = append(saved, persistedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
			Secure:  c.Secure,
		})
	}
	raw, err := json.Marshal(saved)
	if err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		log.Warnf("create auth dir failed: %v", err)
		return
	}
	if err = os.WriteFile(f.path, raw, 0o600); err != nil {
		log.Warnf("write %s failed: %v", f.path, err)
	}
}
