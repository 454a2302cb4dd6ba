package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// Store is the global cookie session store. It carries the PKCE code
// verifier during the OAuth redirect flow and the portal user's identity.
var Store *sessions.CookieStore

// Session names.
const (
	// OAuthSessionName holds the code verifier between the authorize
	// redirect and the provider callback.
	OAuthSessionName = "oauth-flow"
	// UserSessionName holds the signed-in portal user's id.
	UserSessionName = "portal-session"
)

// Session value keys.
const (
	SessionKeyCodeVerifier = "code_verifier"
	SessionKeyUserID       = "user_id"
)

// OAuthFlowMaxAge bounds replay exposure: the verifier cookie expires after
// five minutes even if the callback never arrives.
const OAuthFlowMaxAge = 300

// UserSessionMaxAge keeps the identity cookie alive long enough to
// disconnect a stored token well after the authorization flow finished.
const UserSessionMaxAge = 30 * 24 * 60 * 60

var secureCookies bool

// InitSessionStore initializes the cookie-based session store. The secret can
// be any passphrase - it is SHA-256 hashed to derive a 32-byte signing key
// and must be consistent across restarts. The store default MaxAge covers
// the short-lived flow cookie; the user session overrides it per session.
func InitSessionStore(secret string, secure bool) {
	key := sha256.Sum256([]byte(secret))
	secureCookies = secure

	Store = sessions.NewCookieStore(key[:])
	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   OAuthFlowMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// GetOAuthSession retrieves the OAuth flow session from the request,
// creating a new one if absent.
func GetOAuthSession(r *http.Request) (*sessions.Session, error) {
	return Store.Get(r, OAuthSessionName)
}

// GetUserSession retrieves the portal user session from the request. The
// identity cookie outlives the flow cookie: without the longer MaxAge a user
// could never disconnect more than five minutes after authorizing.
func GetUserSession(r *http.Request) (*sessions.Session, error) {
	session, err := Store.Get(r, UserSessionName)
	if err != nil {
		return nil, err
	}
	session.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   UserSessionMaxAge,
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return session, nil
}

// SaveSession saves the session to the response.
func SaveSession(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	return session.Save(r, w)
}

// ConsumeVerifier reads the code verifier from the OAuth flow session and
// clears it, so a verifier is only ever exchanged once.
func ConsumeVerifier(r *http.Request, w http.ResponseWriter) (string, bool) {
	session, err := GetOAuthSession(r)
	if err != nil {
		return "", false
	}
	verifier, ok := session.Values[SessionKeyCodeVerifier].(string)
	if !ok || verifier == "" {
		return "", false
	}
	delete(session.Values, SessionKeyCodeVerifier)
	_ = session.Save(r, w)
	return verifier, true
}

// CurrentUserID extracts the signed-in user's id from the user session.
func CurrentUserID(r *http.Request) (uuid.UUID, bool) {
	session, err := GetUserSession(r)
	if err != nil {
		return uuid.Nil, false
	}
	raw, ok := session.Values[SessionKeyUserID].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
