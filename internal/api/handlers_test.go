package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voicelog/internal/auth"
	"voicelog/internal/config"
	"voicelog/internal/models"
	"voicelog/internal/service/account"
	"voicelog/internal/service/conversation"
	"voicelog/internal/service/realtime"
	"voicelog/internal/session"
	"voicelog/internal/storage"
)

func TestHandlersEndToEndFlow(t *testing.T) {
	router, _ := newTestServer(t, testOptions{})

	email := fmt.Sprintf("tester_%d@example.com", time.Now().UnixNano())
	password := "pass123"

	// Sign up.
	signUpResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	}, map[string]string{"Origin": "http://localhost:3000"})
	assertStatus(t, signUpResp, http.StatusCreated)
	var signUpBody struct {
		User            models.User `json:"user"`
		EmailRedirectTo string      `json:"email_redirect_to"`
	}
	decodeJSON(t, signUpResp.Body.Bytes(), &signUpBody)
	if signUpBody.User.ID == "" {
		t.Fatalf("expected user id in sign up response")
	}
	if signUpBody.EmailRedirectTo != "https://voicelog.example.com/auth/callback" {
		t.Fatalf("unexpected redirect: %s", signUpBody.EmailRedirectTo)
	}

	// Sign in.
	signInResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	assertStatus(t, signInResp, http.StatusOK)
	var sess models.AuthSession
	decodeJSON(t, signInResp.Body.Bytes(), &sess)
	if sess.AccessToken == "" || sess.TokenType != "bearer" || sess.User == nil || sess.User.ID != signUpBody.User.ID {
		t.Fatalf("unexpected session: %+v", sess)
	}
	authHeader := map[string]string{"Authorization": "Bearer " + sess.AccessToken}

	// Current session.
	whoResp := doJSONRequest(t, router, http.MethodGet, "/api/auth/session", nil, authHeader)
	assertStatus(t, whoResp, http.StatusOK)
	var whoBody struct {
		User      models.User `json:"user"`
		ExpiresAt time.Time   `json:"expires_at"`
	}
	decodeJSON(t, whoResp.Body.Bytes(), &whoBody)
	if whoBody.User.Email != email || whoBody.ExpiresAt.IsZero() {
		t.Fatalf("unexpected session body: %s", whoResp.Body.String())
	}

	// Save two transcripts.
	saveResp := doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]any{
		"text":       "[user]: hello\n[AI]: hi there\nnote: ignore me\n[user]: bye",
		"debug_logs": []string{"connected"},
	}, authHeader)
	assertStatus(t, saveResp, http.StatusCreated)
	var saved models.Conversation
	decodeJSON(t, saveResp.Body.Bytes(), &saved)
	if saved.ID == "" || saved.OwnerID != sess.User.ID {
		t.Fatalf("unexpected record: %+v", saved)
	}
	if saved.Content.Metadata.MessageCount != 3 || len(saved.Content.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %+v", saved.Content)
	}
	if saved.Content.Messages[1].Role != models.RoleAssistant || saved.Content.Messages[1].Content != "hi there" {
		t.Fatalf("unexpected second message: %+v", saved.Content.Messages[1])
	}

	secondResp := doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]any{
		"text": "",
	}, authHeader)
	assertStatus(t, secondResp, http.StatusCreated)
	var second models.Conversation
	decodeJSON(t, secondResp.Body.Bytes(), &second)
	if second.Content.Metadata.MessageCount != 0 || second.Content.Messages == nil {
		t.Fatalf("expected empty non-nil messages, got %+v", second.Content)
	}

	// List newest first.
	listResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations?limit=10", nil, authHeader)
	assertStatus(t, listResp, http.StatusOK)
	var listBody struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	if len(listBody.Conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(listBody.Conversations))
	}
	if listBody.Conversations[0].ID != second.ID {
		t.Fatalf("expected newest conversation first")
	}

	// Fetch by id twice.
	path := "/api/conversations/" + saved.ID
	first := doJSONRequest(t, router, http.MethodGet, path, nil, authHeader)
	assertStatus(t, first, http.StatusOK)
	again := doJSONRequest(t, router, http.MethodGet, path, nil, authHeader)
	assertStatus(t, again, http.StatusOK)
	if first.Body.String() != again.Body.String() {
		t.Fatalf("expected identical records, got %s and %s", first.Body.String(), again.Body.String())
	}

	// Delete, then it is gone.
	delResp := doJSONRequest(t, router, http.MethodDelete, path, nil, authHeader)
	assertStatus(t, delResp, http.StatusNoContent)
	missing := doJSONRequest(t, router, http.MethodGet, path, nil, authHeader)
	assertStatus(t, missing, http.StatusNotFound)

	// Sign out revokes the token.
	outResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/signout", nil, authHeader)
	assertStatus(t, outResp, http.StatusNoContent)
	afterResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations", nil, authHeader)
	assertStatus(t, afterResp, http.StatusUnauthorized)
}

func TestConversationsAreScopedToOwner(t *testing.T) {
	router, _ := newTestServer(t, testOptions{})
	alice := signUpAndSignIn(t, router)
	bob := signUpAndSignIn(t, router)

	saveResp := doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]string{
		"text": "[user]: private",
	}, alice)
	assertStatus(t, saveResp, http.StatusCreated)
	var rec models.Conversation
	decodeJSON(t, saveResp.Body.Bytes(), &rec)

	path := "/api/conversations/" + rec.ID
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, path, nil, bob), http.StatusNotFound)
	assertStatus(t, doJSONRequest(t, router, http.MethodDelete, path, nil, bob), http.StatusNotFound)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, path, nil, alice), http.StatusOK)

	listResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations", nil, bob)
	assertStatus(t, listResp, http.StatusOK)
	if got := strings.TrimSpace(listResp.Body.String()); got != `{"conversations":[]}` {
		t.Fatalf("expected empty list for bob, got %s", got)
	}
}

func TestConversationsRequireToken(t *testing.T) {
	router, _ := newTestServer(t, testOptions{})
	resp := doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]string{"text": "[user]: hi"}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestCookieAuthRequiresCSRF(t *testing.T) {
	router, _ := newTestServer(t, testOptions{})
	email := fmt.Sprintf("cookie_%d@example.com", time.Now().UnixNano())
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": email, "password": "pass123",
	}, nil), http.StatusCreated)
	signInResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/signin", map[string]string{
		"email": email, "password": "pass123",
	}, nil)
	assertStatus(t, signInResp, http.StatusOK)

	var authCookie, csrfCookie *http.Cookie
	for _, ck := range signInResp.Result().Cookies() {
		switch ck.Name {
		case "auth_token":
			authCookie = ck
		case "csrf_token":
			csrfCookie = ck
		}
	}
	if authCookie == nil || csrfCookie == nil {
		t.Fatalf("expected auth and csrf cookies")
	}
	cookieHeader := map[string]string{"Cookie": authCookie.Name + "=" + authCookie.Value + "; " + csrfCookie.Name + "=" + csrfCookie.Value}

	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/conversations", nil, cookieHeader), http.StatusOK)
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]string{"text": "x"}, cookieHeader), http.StatusForbidden)

	cookieHeader["X-CSRF-Token"] = csrfCookie.Value
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]string{"text": "x"}, cookieHeader), http.StatusCreated)
}

func TestSignUpAndSignInErrors(t *testing.T) {
	router, _ := newTestServer(t, testOptions{})
	body := map[string]string{"email": "dup@example.com", "password": "pass123", "redirect_to": "https://app.test/auth/callback"}

	first := doJSONRequest(t, router, http.MethodPost, "/api/auth/signup", body, nil)
	assertStatus(t, first, http.StatusCreated)
	var signUpBody struct {
		EmailRedirectTo string `json:"email_redirect_to"`
	}
	decodeJSON(t, first.Body.Bytes(), &signUpBody)
	if signUpBody.EmailRedirectTo != "https://app.test/auth/callback" {
		t.Fatalf("explicit redirect_to not honoured: %s", signUpBody.EmailRedirectTo)
	}

	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/auth/signup", body, nil), http.StatusConflict)
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "short@example.com", "password": "123",
	}, nil), http.StatusBadRequest)
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "dup@example.com", "password": "wrong-pass",
	}, nil), http.StatusUnauthorized)
}

func TestDeleteUser(t *testing.T) {
	router, db := newTestServer(t, testOptions{})
	headers := signUpAndSignIn(t, router)
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/conversations", map[string]string{"text": "[user]: hi"}, headers), http.StatusCreated)

	assertStatus(t, doJSONRequest(t, router, http.MethodDelete, "/api/auth/user", nil, headers), http.StatusNoContent)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/auth/session", nil, headers), http.StatusUnauthorized)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected conversations removed, got %d", count)
	}
}

func TestRealtimeEnglishPreset(t *testing.T) {
	var got realtime.ClientSecretRequest
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"value":"ek_test_123","expires_at":1760000000}`)
	}))
	defer upstream.Close()

	router, _ := newTestServer(t, testOptions{upstreamURL: upstream.URL, apiKey: "sk-test"})
	resp := doJSONRequest(t, router, http.MethodPost, "/api/realtime", map[string]string{"language": "en"}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		ClientSecret string `json:"clientSecret"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.ClientSecret != "ek_test_123" {
		t.Fatalf("unexpected secret: %s", body.ClientSecret)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected upstream auth header: %s", gotAuth)
	}
	if got.Session.Audio.Output.Voice != "alloy" {
		t.Fatalf("expected alloy voice, got %s", got.Session.Audio.Output.Voice)
	}
	if got.Session.Instructions != realtime.PresetFor("en").Instructions {
		t.Fatalf("expected English instructions, got %q", got.Session.Instructions)
	}
	if got.ExpiresAfter.Seconds != 600 || got.Session.Model != "gpt-realtime" {
		t.Fatalf("unexpected upstream request: %+v", got)
	}
}

func TestRealtimeEmptyBodyUsesDefaultLanguage(t *testing.T) {
	var voice string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req realtime.ClientSecretRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		voice = req.Session.Audio.Output.Voice
		io.WriteString(w, `{"value":"ek_default"}`)
	}))
	defer upstream.Close()

	router, _ := newTestServer(t, testOptions{upstreamURL: upstream.URL, apiKey: "sk-test"})
	req := httptest.NewRequest(http.MethodPost, "/api/realtime", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusOK)
	if voice != "coral" {
		t.Fatalf("expected coral voice for default language, got %s", voice)
	}
}

func TestRealtimeMissingKey(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer upstream.Close()

	router, _ := newTestServer(t, testOptions{upstreamURL: upstream.URL})
	resp := doJSONRequest(t, router, http.MethodPost, "/api/realtime", map[string]string{}, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	if called {
		t.Fatalf("upstream must not be called without an api key")
	}
	if !strings.Contains(resp.Body.String(), "OPENAI_API_KEY") {
		t.Fatalf("expected descriptive error, got %s", resp.Body.String())
	}
}

func TestRealtimeUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer upstream.Close()

	router, _ := newTestServer(t, testOptions{upstreamURL: upstream.URL, apiKey: "sk-bad"})
	resp := doJSONRequest(t, router, http.MethodPost, "/api/realtime", nil, nil)
	assertStatus(t, resp, http.StatusInternalServerError)
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Error != "Incorrect API key provided" {
		t.Fatalf("unexpected error: %s", body.Error)
	}
}

func TestRealtimeInvalidBody(t *testing.T) {
	router, _ := newTestServer(t, testOptions{apiKey: "sk-test"})
	req := httptest.NewRequest(http.MethodPost, "/api/realtime", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestRealtimeMissingKeyWinsOverInvalidBody(t *testing.T) {
	router, _ := newTestServer(t, testOptions{})
	req := httptest.NewRequest(http.MethodPost, "/api/realtime", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusInternalServerError)
	if !strings.Contains(rec.Body.String(), "OPENAI_API_KEY") {
		t.Fatalf("expected configuration error, got %s", rec.Body.String())
	}
}

type testOptions struct {
	upstreamURL string
	apiKey      string
}

func newTestServer(t *testing.T, opts testOptions) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: filepath.Join(t.TempDir(), "api.db")},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	authSvc := auth.NewService(db, nil, "test-secret", time.Hour)
	store := conversation.NewStore(storage.NewConversationRepository(db))
	upstreamURL := opts.upstreamURL
	if upstreamURL == "" {
		upstreamURL = "http://127.0.0.1:0"
	}
	proxy := realtime.NewProxy(
		realtime.NewClient(upstreamURL, 5*time.Second),
		func() string { return opts.apiKey },
		"", "",
	)
	handler := NewHandler(account.NewService(db), authSvc, store, proxy, session.SiteURLs{Public: "voicelog.example.com"})

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

func signUpAndSignIn(t *testing.T, router *gin.Engine) map[string]string {
	t.Helper()
	email := fmt.Sprintf("tester_%d@example.com", time.Now().UnixNano())
	password := "pass123"
	assertStatus(t, doJSONRequest(t, router, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	}, nil), http.StatusCreated)

	signInResp := doJSONRequest(t, router, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	assertStatus(t, signInResp, http.StatusOK)
	var sess models.AuthSession
	decodeJSON(t, signInResp.Body.Bytes(), &sess)
	if sess.AccessToken == "" {
		t.Fatalf("expected access token after sign in")
	}
	return map[string]string{"Authorization": "Bearer " + sess.AccessToken}
}
