package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
	"github.com/yanqian/eldertech-assistant/internal/infra/chatrepo"
	"github.com/yanqian/eldertech-assistant/internal/infra/config"
	"github.com/yanqian/eldertech-assistant/internal/infra/embedder"
	"github.com/yanqian/eldertech-assistant/internal/infra/faqrepo"
	"github.com/yanqian/eldertech-assistant/internal/infra/faqstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/reportarchive"
	"github.com/yanqian/eldertech-assistant/internal/infra/reportstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/tokenstore"
	"github.com/yanqian/eldertech-assistant/internal/infra/userrepo"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

const adminEmail = "admin@example.com"

type stubSpeech struct{}

func (stubSpeech) Transcribe(_ context.Context, in speech.TranscriptionInput) (speech.Transcription, error) {
	return speech.Transcription{Text: "heard " + string(in.Audio), Language: in.Language}, nil
}

func (stubSpeech) Synthesize(_ context.Context, in speech.SynthesisInput) ([]byte, error) {
	return []byte("mp3:" + in.Text), nil
}

type testEnv struct {
	server  *http.Server
	archive *reportarchive.MemoryStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()

	authSvc := auth.NewService(auth.Config{
		Secret:          "router-test-secret",
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, userrepo.NewMemoryRepository(), tokenstore.NewMemoryDenylist(), []string{adminEmail}, log)

	chatSvc := chat.NewService(chat.Config{SystemPrompt: "You are ElderTech."}, chatrepo.NewMemoryRepository(), nil, nil, log)
	speechSvc := speech.NewService(speech.Config{}, stubSpeech{}, log)

	emb := embedder.NewDeterministicEmbedder(0)
	repo := faqrepo.NewMemoryRepository()
	store := faqstore.NewMemoryStore()
	faqSvc := faq.NewService(faq.Config{
		Prompt:              "answer",
		SimilarityThreshold: 0.3,
		LexicalThreshold:    0.5,
		DefaultListLimit:    50,
	}, repo, store, nil, emb, log)

	analysisCfg := faqanalysis.DefaultConfig()
	analysisCfg.MinCategoryEntries = 0
	archive := reportarchive.NewMemoryStorage()
	pipeline := faqanalysis.NewPipeline(faqanalysis.NewEngine(emb, log), log)
	analysisSvc := faqanalysis.NewService(analysisCfg, "faq-analysis", pipeline, repo, store, reportstore.NewMemoryStore(), archive, nil, log)

	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	handler := NewHandler(authSvc, chatSvc, speechSvc, faqSvc, analysisSvc, log)
	return &testEnv{server: NewRouter(cfg, handler), archive: archive}
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, email string) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/auth/register",
		`{"username":"`+username+`","email":"`+email+`","password":"correct-horse","fullName":"Test User"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_HealthAndBanner(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ElderTech Assistant API")

	rec = env.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "margaret", "margaret@example.com")

	rec := env.do(http.MethodGet, "/api/v1/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me auth.UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "margaret", me.Username)
	require.False(t, me.IsAdmin)

	rec = env.do(http.MethodPut, "/api/v1/auth/profile", `{"emergencyContact":"+65 5555 0101","age":78}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "+65 5555 0101", me.EmergencyContact)
	require.Equal(t, 78, *me.Age)

	rec = env.do(http.MethodPost, "/api/v1/auth/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/auth/me", "", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, auth.CodeInvalidToken, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_AuthErrors(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "albert", "albert@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
		code   string
	}{
		{name: "missing header", method: http.MethodGet, path: "/api/v1/auth/me", status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "garbage token", method: http.MethodGet, path: "/api/v1/auth/me", token: "nope", status: http.StatusUnauthorized, code: auth.CodeInvalidToken},
		{name: "wrong password", method: http.MethodPost, path: "/api/v1/auth/login", body: `{"email":"albert@example.com","password":"wrong-password"}`, status: http.StatusUnauthorized, code: auth.CodeInvalidCredentials},
		{name: "duplicate email", method: http.MethodPost, path: "/api/v1/auth/register", body: `{"username":"albert2","email":"albert@example.com","password":"correct-horse"}`, status: http.StatusConflict, code: auth.CodeEmailExists},
		{name: "bad json", method: http.MethodPost, path: "/api/v1/auth/login", body: `{"email":1}`, status: http.StatusBadRequest, code: "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body, tt.token)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Equal(t, tt.code, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
		})
	}
}

func TestRouter_ChatConversationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "rose", "rose@example.com")

	rec := env.do(http.MethodPost, "/api/v1/chat/messages", `{"content":"How do I increase the font size?"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sent chat.SendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	require.True(t, sent.Fallback)
	require.Equal(t, chat.FallbackReply, sent.Reply.Content)

	rec = env.do(http.MethodGet, "/api/v1/chat/conversations", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Conversations []chat.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 1)

	path := "/api/v1/chat/conversations/" + itoa(sent.ConversationID)
	rec = env.do(http.MethodPost, path+"/export", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "conversation_")
	require.Contains(t, rec.Body.String(), "You: How do I increase the font size?")

	rec = env.do(http.MethodDelete, path, "", token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, path+"/messages", "", token)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/chat/conversations/abc/messages", "", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ChatStream(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "edith", "edith@example.com")

	rec := env.do(http.MethodPost, "/api/v1/chat/messages/stream", `{"content":"hello"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 1)
	require.True(t, strings.HasPrefix(frames[0], "data: "))
	var chunk chat.StreamChunk
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &chunk))
	require.True(t, chunk.Completed)
	require.True(t, chunk.Fallback)
}

func TestRouter_Speech(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "harold", "harold@example.com")

	rec := env.do(http.MethodGet, "/api/v1/speech/voices", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"shimmer"`)

	rec = env.do(http.MethodPost, "/api/v1/speech/synthesis", `{"text":"Good morning.Time for tea","voice":"robot","speed":9}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, "alloy", rec.Header().Get("X-Voice"))
	require.Equal(t, "1", rec.Header().Get("X-Speed"))
	require.Equal(t, "mp3:Good morning. Time for tea", rec.Body.String())

	body, contentType := multipartAudio(t, "audio/wav", "voice")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/speech/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())
	require.JSONEq(t, `{"text":"heard voice","language":"en"}`, out.Body.String())

	body, contentType = multipartAudio(t, "text/plain", "voice")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/speech/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	out = httptest.NewRecorder()
	env.server.Handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
}

func TestRouter_FAQAdminAndPublic(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.login(t, "walter", "walter@example.com")
	adminToken := env.login(t, "admin", adminEmail)

	create := `{"question":"How do I reset my password?","answer":"Tap Forgot password on the sign in screen.","category":"Account","priority":3}`
	rec := env.do(http.MethodPost, "/api/v1/faqs", create, userToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/faqs", create, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/faqs", create, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry faq.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Equal(t, 3, entry.Priority)

	rec = env.do(http.MethodPost, "/api/v1/faqs", `{"question":"q","answer":"a","priority":-2}`, adminToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/faqs?category=Account", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "reset my password")

	rec = env.do(http.MethodGet, "/api/v1/faqs/categories", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"Account"`)

	rec = env.do(http.MethodGet, "/api/v1/faqs/"+itoa(entry.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/faqs/ask", `{"question":"How do I reset my password?"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ask faq.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ask))
	require.Equal(t, faq.SourceFAQ, ask.Source)
	require.Equal(t, entry.ID, ask.EntryID)

	rec = env.do(http.MethodPost, "/api/v1/faqs/"+itoa(entry.ID)+"/feedback", `{"helpful":true}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/v1/faqs/trending", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "recommendations")

	rec = env.do(http.MethodDelete, "/api/v1/faqs/"+itoa(entry.ID), "", adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/faqs/"+itoa(entry.ID), "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_FAQAnalysis(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.login(t, "doris", "doris@example.com")
	adminToken := env.login(t, "admin", adminEmail)

	rec := env.do(http.MethodGet, "/api/v1/admin/faq-analysis/report", "", userToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/admin/faq-analysis/report", "", adminToken)
	require.Equal(t, http.StatusNotFound, rec.Code)

	for _, q := range []string{"How do I reset my password?", "I forgot my password, how do I change it?"} {
		rec = env.do(http.MethodPost, "/api/v1/faqs", `{"question":"`+q+`","answer":"Use the account page.","category":"Account"}`, adminToken)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/v1/admin/faq-analysis/runs", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report faqanalysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, faqanalysis.TriggerAPI, report.Trigger)
	require.Equal(t, 2, report.Summary.TotalFAQs)
	require.NotEmpty(t, report.ArchiveKey)
	require.Equal(t, []string{report.ArchiveKey}, env.archive.Keys())

	rec = env.do(http.MethodGet, "/api/v1/admin/faq-analysis/report", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest faqanalysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	require.Equal(t, report.RunID, latest.RunID)

	rec = env.do(http.MethodPost, "/api/v1/admin/faq-analysis/runs", `{"async":true}`, adminToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/faqs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func multipartAudio(t *testing.T, contentType, data string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="clip.wav"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("language", "en"))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
