package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/policyqa-go/internal/adapters/usage"
	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct {
	doc    *entities.PolicyDocument
	chunks []entities.Chunk
	err    error
}

func (s *stubSource) LoadDocument(ctx context.Context) (*entities.PolicyDocument, error) {
	return s.doc, s.err
}

func (s *stubSource) LoadChunks(ctx context.Context) ([]entities.Chunk, error) {
	return s.chunks, s.err
}

type stubGenerator struct {
	answer string
	err    error
	user   string
}

func (g *stubGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	g.user = user
	return g.answer, g.err
}

func (g *stubGenerator) Name() string { return "stub" }

func policy() *entities.PolicyDocument {
	return &entities.PolicyDocument{
		Meta: entities.DocumentMeta{Title: "Personnel Policies", Subtitle: "Test viewer"},
		TOC: []entities.TOCItem{
			{ID: "s1", Label: "SECTION 1", Title: "General Provisions"},
			{ID: "s1-1", Label: "1.1", Title: "Purpose"},
			{ID: "s4", Label: "SECTION 4", Title: "Leave"},
			{ID: "s4-5", Label: "4.5", Title: "Sick Leave"},
		},
		Blocks: []entities.Block{
			{ID: "s1", Kind: entities.KindMajorHeading, Label: "SECTION 1", Title: "General Provisions"},
			{ID: "s1-1", Kind: entities.KindHeading, Label: "1.1", Title: "Purpose"},
			{Kind: entities.KindParagraph, Text: "These policies apply to all staff."},
			{ID: "s4", Kind: entities.KindMajorHeading, Label: "SECTION 4", Title: "Leave"},
			{ID: "s4-5", Kind: entities.KindHeading, Label: "4.5", Title: "Sick Leave"},
			{Kind: entities.KindSubentry, Label: "a.", Text: "Accrual: one day per month."},
			{Kind: entities.KindListItem, Text: "Notify your supervisor."},
		},
	}
}

func chunks() []entities.Chunk {
	return []entities.Chunk{
		{Section: "1", Label: "1.1", Title: "Purpose", Text: "These policies apply to all staff."},
		{Section: "4", Label: "4.5", Title: "Sick Leave", Text: "Sick leave accrues one day per month."},
	}
}

type fixture struct {
	server    *Server
	generator *stubGenerator
	source    *stubSource
}

type fixtureOptions struct {
	botKey      string
	siteKey     string
	noGenerator bool
	limit       int
}

func newFixture(t *testing.T, o fixtureOptions) *fixture {
	t.Helper()

	source := &stubSource{doc: policy(), chunks: chunks()}
	gen := &stubGenerator{answer: "  Employees accrue one sick day per month [4.5].  "}

	var generator *stubGenerator
	if !o.noGenerator {
		generator = gen
	}

	cfg := usecases.AskConfig{
		BotKey:          o.botKey,
		DailyLimit:      o.limit,
		SiteKeyRequired: o.siteKey != "",
		Version:         "test",
	}
	var ask *usecases.AskUseCase
	if generator != nil {
		ask = usecases.NewAskUseCase(source, generator, usage.NewMemoryCounter(), cfg, nil)
	} else {
		ask = usecases.NewAskUseCase(source, nil, usage.NewMemoryCounter(), cfg, nil)
	}

	server, err := NewServer(ask, source, source, usecases.NewSiteAccess(o.siteKey), Options{}, nil)
	require.NoError(t, err)

	return &fixture{server: server, generator: gen, source: source}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func askRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOptions{siteKey: "open-sesame"})

	w := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, w.Header().Get(headerRequestID), 26, "ULID")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "abc-123")
	w = f.do(req)
	assert.Equal(t, "abc-123", w.Header().Get(headerRequestID))
}

func TestAskStatus(t *testing.T) {
	f := newFixture(t, fixtureOptions{botKey: "bee"})

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/ask?status=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{
		"ok": true, "version": "test", "hasAI": true, "hasKV": true, "hasASSETS": true,
		"botKeyRequired": true, "siteKeyRequired": false
	}`, w.Body.String())
}

func TestAsk_Success(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(askRequest(`{"question":"How much sick leave do I get?"}`))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"answer":"Employees accrue one sick day per month [4.5].","limit":5,"remaining":4}`, w.Body.String())
	assert.Contains(t, f.generator.user, "1) 4 — 4.5 Sick Leave")
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name   string
		opts   fixtureOptions
		body   string
		status int
		error  string
	}{
		{"invalid json", fixtureOptions{}, `{"question":`, http.StatusBadRequest, "Invalid JSON body."},
		{"empty body", fixtureOptions{}, ``, http.StatusBadRequest, "Invalid JSON body."},
		{"object question", fixtureOptions{}, `{"question":{"text":"leave"}}`, http.StatusBadRequest, "Invalid JSON body."},
		{"zero question", fixtureOptions{}, `{"question":0}`, http.StatusBadRequest, "Missing question."},
		{"null question", fixtureOptions{}, `{"question":null}`, http.StatusBadRequest, "Missing question."},
		{"missing question", fixtureOptions{}, `{"question":"   "}`, http.StatusBadRequest, "Missing question."},
		{"wrong bot key", fixtureOptions{botKey: "bee"}, `{"question":"leave","prototypeKey":"wasp"}`, http.StatusUnauthorized,
			"Assistant access key required (or incorrect). Enter the assistant access key and try again."},
		{"no generator", fixtureOptions{noGenerator: true}, `{"question":"leave"}`, http.StatusInternalServerError,
			"Language model is not configured."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts)

			w := f.do(askRequest(tt.body))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.error, decode(t, w)["error"])
		})
	}
}

func TestAsk_ScalarFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"number", `{"question":42}`, "Question:\n42\n"},
		{"fraction", `{"question":1.50}`, "Question:\n1.5\n"},
		{"boolean", `{"question":true}`, "Question:\ntrue\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOptions{})

			w := f.do(askRequest(tt.body))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Contains(t, f.generator.user, tt.want)
		})
	}

	f := newFixture(t, fixtureOptions{botKey: "1234"})
	w := f.do(askRequest(`{"question":"leave","prototypeKey":1234}`))
	assert.Equal(t, http.StatusOK, w.Code, "numeric access key")
}

func TestAsk_BotKeyAccepted(t *testing.T) {
	f := newFixture(t, fixtureOptions{botKey: "bee"})

	w := f.do(askRequest(`{"question":"leave","prototypeKey":" bee "}`))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsk_DailyLimit(t *testing.T) {
	f := newFixture(t, fixtureOptions{limit: 2})

	for want := 1; want >= 0; want-- {
		w := f.do(askRequest(`{"question":"leave","prototypeKey":"k"}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, want, decode(t, w)["remaining"])
	}

	w := f.do(askRequest(`{"question":"leave","prototypeKey":"k"}`))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Daily limit reached (2 questions/day).", body["error"])
	assert.EqualValues(t, 2, body["limit"])
	assert.EqualValues(t, 0, body["remaining"])

	w = f.do(askRequest(`{"question":"leave","prototypeKey":"other"}`))
	assert.Equal(t, http.StatusOK, w.Code, "quota is per key")
}

func TestAsk_GenerationFailed(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.generator.err = errors.New("model overloaded")

	w := f.do(askRequest(`{"question":"leave"}`))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "AI request failed.", body["error"])
	assert.Equal(t, "model overloaded", body["detail"])
	assert.NotEmpty(t, body["hint"])
}

func TestSiteGate_Locked(t *testing.T) {
	f := newFixture(t, fixtureOptions{siteKey: "open-sesame"})

	t.Run("api", func(t *testing.T) {
		w := f.do(askRequest(`{"question":"leave"}`))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		body := decode(t, w)
		assert.Equal(t, false, body["ok"])
		assert.Equal(t, "SITE_LOCKED", body["error"])
	})

	t.Run("json accept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/policy.json", nil)
		req.Header.Set("Accept", "application/json")
		w := f.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "SITE_LOCKED", decode(t, w)["error"])
	})

	t.Run("browser", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/sections/s4", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), `name="r" value="/sections/s4"`)
		assert.NotContains(t, w.Body.String(), "Sick Leave")
	})

	t.Run("unlock hint stays open", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/unlock", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Use the access key form on the main page to unlock.", w.Body.String())
	})
}

func TestSiteGate_Cookie(t *testing.T) {
	f := newFixture(t, fixtureOptions{siteKey: "open-sesame"})
	site := usecases.NewSiteAccess("open-sesame")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: usecases.SiteCookieName, Value: site.Token()})
	w := f.do(req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: usecases.SiteCookieName, Value: "forged"})
	w = f.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func unlockRequest(key, returnPath string) *http.Request {
	form := url.Values{"key": {key}, "r": {returnPath}}
	req := httptest.NewRequest(http.MethodPost, "/unlock", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestUnlock(t *testing.T) {
	f := newFixture(t, fixtureOptions{siteKey: "open-sesame"})
	token := usecases.NewSiteAccess("open-sesame").Token()

	t.Run("correct key", func(t *testing.T) {
		w := f.do(unlockRequest("open-sesame", "/sections/s4"))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/sections/s4", w.Header().Get("Location"))

		cookie := w.Header().Get("Set-Cookie")
		assert.Contains(t, cookie, fmt.Sprintf("%s=%s", usecases.SiteCookieName, token))
		assert.Contains(t, cookie, "Path=/")
		assert.Contains(t, cookie, "Max-Age=2592000")
		assert.Contains(t, cookie, "HttpOnly")
		assert.Contains(t, cookie, "Secure")
		assert.Contains(t, cookie, "SameSite=Lax")
	})

	t.Run("offsite redirect", func(t *testing.T) {
		w := f.do(unlockRequest("open-sesame", "//evil.example"))
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("wrong key", func(t *testing.T) {
		w := f.do(unlockRequest("guess", "/sections/s4"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Incorrect access key.")
		assert.Contains(t, w.Body.String(), `value="/sections/s4"`)
		assert.Empty(t, w.Header().Get("Set-Cookie"))
	})
}

func TestUnlock_NotConfigured(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(unlockRequest("anything", "/"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Site key is not configured.", w.Body.String())
}

func TestLogout(t *testing.T) {
	f := newFixture(t, fixtureOptions{siteKey: "open-sesame"})

	w := f.do(httptest.NewRequest(http.MethodGet, "/logout?r=/sections/s1", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/sections/s1", w.Header().Get("Location"))
	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, usecases.SiteCookieName+"=;")
	assert.Contains(t, cookie, "Max-Age=0")
}

func TestViewer_Cover(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Personnel Policies")
	assert.Contains(t, body, "Currently viewing:")
	assert.Contains(t, body, "Cover page")
	assert.Contains(t, body, `href="/sections/s4"`)
	assert.Contains(t, body, `href="/sections/s4?target=s4-5#s4-5"`)
}

func TestViewer_Section(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/sections/s4?target=s4-5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<strong>Accrual:</strong> one day per month.")
	assert.Contains(t, body, `<div class="bullet">•</div>`)
	assert.Contains(t, body, "4.5 — Sick Leave")
	assert.NotContains(t, body, "These policies apply to all staff.", "other sections are not rendered")
}

func TestViewer_UnknownSection(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/sections/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewer_DocumentUnavailable(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.source.err = errors.New("disk on fire")

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAssets(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/policy.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc entities.PolicyDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Blocks, 7)

	w = f.do(httptest.NewRequest(http.MethodGet, "/chunks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var set entities.ChunkSet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	assert.Len(t, set.Chunks, 2)
}

func TestStatic(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/ask")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{usecases.ErrMissingQuestion, http.StatusBadRequest},
		{usecases.ErrAccessKeyRequired, http.StatusUnauthorized},
		{usecases.ErrDailyLimitReached, http.StatusTooManyRequests},
		{fmt.Errorf("wrapped: %w", usecases.ErrSectionNotFound), http.StatusNotFound},
		{usecases.ErrGeneratorUnavailable, http.StatusInternalServerError},
		{fmt.Errorf("%w: %w", usecases.ErrGenerationFailed, errors.New("boom")), http.StatusInternalServerError},
		{errors.New("counter down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
