package usecases

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Site access cookie settings.
const (
	SiteCookieName   = "site_access"
	SiteCookieMaxAge = 30 * 24 * 60 * 60

	siteTokenSalt = "::site_access_v1"
)

// SiteAccess locks the whole site behind a shared access key. The browser
// proves it knows the key by presenting a cookie holding a hash of it.
type SiteAccess struct {
	key   string
	token string
}

// NewSiteAccess creates a SiteAccess; an empty key leaves the site public.
func NewSiteAccess(siteKey string) *SiteAccess {
	sa := &SiteAccess{key: siteKey}
	if siteKey != "" {
		sum := sha256.Sum256([]byte(siteKey + siteTokenSalt))
		sa.token = hex.EncodeToString(sum[:])
	}
	return sa
}

// Enabled reports whether a site key is configured.
func (sa *SiteAccess) Enabled() bool {
	return sa.key != ""
}

// Token is the cookie value granted after a successful unlock.
func (sa *SiteAccess) Token() string {
	return sa.token
}

// Verify reports whether cookieValue unlocks the site.
func (sa *SiteAccess) Verify(cookieValue string) bool {
	if !sa.Enabled() || cookieValue == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieValue), []byte(sa.token)) == 1
}

// CheckKey reports whether provided is the site key.
func (sa *SiteAccess) CheckKey(provided string) bool {
	if !sa.Enabled() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(sa.key)) == 1
}

// SafeRedirect keeps redirects on this site: anything that is not an
// absolute path, or that is protocol-relative, becomes "/".
func SafeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	return target
}
