package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConsumeVerifier_OneShot(t *testing.T) {
	InitSessionStore("test-secret", false)

	// Store a verifier the way the flow-start handler does.
	setReq := httptest.NewRequest(http.MethodGet, "/api/auth/canva", nil)
	setRec := httptest.NewRecorder()
	session, err := GetOAuthSession(setReq)
	if err != nil {
		t.Fatalf("GetOAuthSession failed: %v", err)
	}
	session.Values[SessionKeyCodeVerifier] = "stored-verifier"
	if err := SaveSession(setReq, setRec, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	cookies := setRec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be set")
	}

	// First callback read returns the verifier and clears it.
	cbReq := httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil)
	for _, c := range cookies {
		cbReq.AddCookie(c)
	}
	cbRec := httptest.NewRecorder()

	verifier, ok := ConsumeVerifier(cbReq, cbRec)
	if !ok {
		t.Fatal("expected verifier on first consume")
	}
	if verifier != "stored-verifier" {
		t.Errorf("expected stored verifier, got %q", verifier)
	}

	// A replay with the updated cookie finds nothing.
	replayReq := httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil)
	for _, c := range cbRec.Result().Cookies() {
		replayReq.AddCookie(c)
	}
	replayRec := httptest.NewRecorder()

	if _, ok := ConsumeVerifier(replayReq, replayRec); ok {
		t.Error("expected verifier to be consumed exactly once")
	}
}

func TestUserSessionOutlivesFlowCookie(t *testing.T) {
	InitSessionStore("test-secret", false)

	userReq := httptest.NewRequest(http.MethodGet, "/", nil)
	userRec := httptest.NewRecorder()
	userSession, err := GetUserSession(userReq)
	if err != nil {
		t.Fatalf("GetUserSession failed: %v", err)
	}
	userSession.Values[SessionKeyUserID] = "01234567-89ab-cdef-0123-456789abcdef"
	if err := SaveSession(userReq, userRec, userSession); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	flowReq := httptest.NewRequest(http.MethodGet, "/api/auth/canva", nil)
	flowRec := httptest.NewRecorder()
	flowSession, err := GetOAuthSession(flowReq)
	if err != nil {
		t.Fatalf("GetOAuthSession failed: %v", err)
	}
	flowSession.Values[SessionKeyCodeVerifier] = "v"
	if err := SaveSession(flowReq, flowRec, flowSession); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	userCookie := findCookie(t, userRec, UserSessionName)
	flowCookie := findCookie(t, flowRec, OAuthSessionName)

	if userCookie.MaxAge != UserSessionMaxAge {
		t.Errorf("expected user cookie MaxAge %d, got %d", UserSessionMaxAge, userCookie.MaxAge)
	}
	if flowCookie.MaxAge != OAuthFlowMaxAge {
		t.Errorf("expected flow cookie MaxAge %d, got %d", OAuthFlowMaxAge, flowCookie.MaxAge)
	}
	if userCookie.MaxAge <= flowCookie.MaxAge {
		t.Error("identity cookie must outlive the verifier cookie, or stored tokens can never be disconnected")
	}

	// The saved identity cookie round-trips through CurrentUserID.
	readReq := httptest.NewRequest(http.MethodPost, "/api/auth/canva/disconnect", nil)
	readReq.AddCookie(userCookie)
	if _, ok := CurrentUserID(readReq); !ok {
		t.Error("expected CurrentUserID to resolve from the saved cookie")
	}
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestConsumeVerifier_NoSession(t *testing.T) {
	InitSessionStore("test-secret", false)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil)
	rec := httptest.NewRecorder()

	if _, ok := ConsumeVerifier(req, rec); ok {
		t.Error("expected no verifier without a flow session")
	}
}
