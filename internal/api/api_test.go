package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"chefia/internal/agents"
	"chefia/internal/auth"
	"chefia/internal/config"
	"chefia/internal/llm"
	"chefia/internal/monitoring"
	"chefia/internal/session"
	"chefia/internal/storage"
)

// stubModel answers every prompt with the same text, streaming it word by
// word when asked to.
type stubModel struct {
	mu      sync.Mutex
	answer  string
	prompts []string
	key     string
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	last := messages[len(messages)-1]
	m.prompts = append(m.prompts, last.Parts[0].(llms.TextContent).Text)
	m.mu.Unlock()

	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(m.answer, " ") {
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

type testEnv struct {
	server  *Server
	model   *stubModel
	archive string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.LLM.RequestsPerMinute = 5
	cfg.LLM.Providers["gemini"] = config.ProviderConfig{APIKey: "configured"}

	model := &stubModel{answer: "Raise BURGER by $2 today"}
	registry := llm.NewRegistry(cfg.LLM).WithFactory(func(p *llm.Provider, name, apiKey string) (llms.Model, error) {
		model.key = apiKey
		return model, nil
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	server := NewServer(Deps{
		Config:     cfg,
		Sessions:   session.NewManager(storage.NewMemoryStore(), registry, cfg.LLM.Provider, cfg.LLM.Model, logger),
		Issuer:     issuer,
		Models:     registry,
		Consultant: agents.NewConsultant(agents.Options{HistoryTurns: 4}, logger),
		Archive:    storage.NewLocalStore(dir),
		Monitor:    monitoring.NewMonitor(),
		Logger:     logger,
	})
	return &testEnv{server: server, model: model, archive: dir}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, path, token string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) startSession(t *testing.T, name string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]string{"user_name": name})
	require.Equal(t, http.StatusCreated, w.Code)
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (e *testEnv) addEntry(t *testing.T, token, name string, cost, price float64, popularity int) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/entries", token, map[string]any{
		"product_name": name, "production_cost": cost, "sale_price": price, "popularity": popularity,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

const salesCSV = `PRODUTO DE VENDA;VENDA DE FRENTE DE LOJA;VENDA DELIVERY;RECEITA FRENTE DE LOJA;RECEITA DELIVERY
Burger;15;5;500,00;100,00
Salad;4;1;60,00;15,00
Soda;30;10;200,00;0
`

const costsCSV = `produto_principal;insumo;valor_custo
Burger;Carne;12,00
Salad;Alface;5,00
Cake;Farinha;3,00
`

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestListProviders(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/providers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var providers []providerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &providers))
	require.Len(t, providers, 5)
	assert.Equal(t, "gemini", providers[0].ID)
	assert.True(t, providers[0].Configured)
	assert.False(t, providers[2].Configured)
}

func TestSessionTokenRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/api/v1/dashboard", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")

	w := env.do(t, http.MethodPatch, "/api/v1/session", token, map[string]string{"provider": "openai", "model": "sonar"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/session", token, map[string]string{"provider": "openai"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/session", token, map[string]string{"provider": "openai", "model": "gpt-4o", "user_name": "Bruno"})
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, "openai", sess["provider"])
	assert.Equal(t, "Bruno", sess["user_name"])
}

func TestUploadMergesAndStores(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")

	w := env.upload(t, "/api/v1/uploads", token, map[string]string{"sales": salesCSV, "costs": costsCSV})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["stored"])
	analysis := body["analysis"].(map[string]any)
	assert.Equal(t, "ok", analysis["outcome"])
	items := analysis["items"].([]any)
	require.Len(t, items, 2)
	burger := items[0].(map[string]any)
	assert.Equal(t, "BURGER", burger["product_name"])
	assert.Equal(t, 18.0, burger["profitability"])
	assert.Equal(t, "star", burger["classification"])
	assert.Len(t, analysis["warnings"], 2)
	assert.Equal(t, []any{"SODA"}, analysis["report"].(map[string]any)["sales_only"])

	w = env.do(t, http.MethodGet, "/api/v1/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode(t, w)
	counts := dash["analysis"].(map[string]any)["counts"].(map[string]any)
	assert.Equal(t, 1.0, counts["star"])
	assert.Equal(t, 1.0, counts["dog"])
	chart := dash["chart"].(map[string]any)
	assert.Len(t, chart["points"], 2)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")

	w := env.upload(t, "/api/v1/uploads", token, map[string]string{"sales": salesCSV})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.upload(t, "/api/v1/uploads", token, map[string]string{"sales": "NOME;QTD\nx;1\n", "costs": costsCSV})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestUploadWithoutOverlapKeepsDataset(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")
	env.addEntry(t, token, "pizza", 20, 50, 10)

	w := env.upload(t, "/api/v1/uploads", token, map[string]string{
		"sales": salesCSV,
		"costs": "produto_principal;valor_custo\nPastel;2,00\n",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["stored"])
	assert.Equal(t, "no_overlap", body["analysis"].(map[string]any)["outcome"])

	w = env.do(t, http.MethodGet, "/api/v1/entries", token, nil)
	assert.Len(t, decode(t, w)["entries"], 1)
}

func TestEntriesCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")

	w := env.do(t, http.MethodPost, "/api/v1/entries", token, map[string]any{
		"product_name": "pizza", "production_cost": 0, "sale_price": 50, "popularity": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/entries", token, map[string]any{
		"product_name": "pizza", "production_cost": 20, "sale_price": 50, "popularity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.Equal(t, "PIZZA", created["product_name"])
	id := int(created["id"].(float64))
	path := "/api/v1/entries/" + strconv.Itoa(id)

	w = env.do(t, http.MethodPut, path, token, map[string]any{
		"product_name": "pizza grande", "production_cost": 22, "sale_price": 60, "popularity": 12,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PIZZA GRANDE", decode(t, w)["product_name"])

	w = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/entries/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.addEntry(t, token, "soda", 1, 5, 40)
	w = env.do(t, http.MethodDelete, "/api/v1/entries", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/entries", token, nil)
	assert.Empty(t, decode(t, w)["entries"])
}

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")
	env.addEntry(t, token, "pizza", 20.5, 50, 20)
	env.addEntry(t, token, "soda", 1, 5, 40)

	w := env.do(t, http.MethodGet, "/api/v1/backup/csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "dados_chefia.csv")
	csvBody := w.Body.String()
	assert.True(t, strings.HasPrefix(csvBody, "\ufeffproduto_nome;"))

	w = env.do(t, http.MethodGet, "/api/v1/backup/xlsx", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	other := env.startSession(t, "Bruno")
	w = env.upload(t, "/api/v1/backup/import", other, map[string]string{"file": csvBody})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["import"].(map[string]any)["skipped"])
	assert.Len(t, body["analysis"].(map[string]any)["items"], 2)

	w = env.upload(t, "/api/v1/backup/import", other, map[string]string{"file": csvBody})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["import"].(map[string]any)["skipped"])
}

func TestBackupArchive(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")

	w := env.do(t, http.MethodPost, "/api/v1/backup/archive", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.addEntry(t, token, "pizza", 20, 50, 20)
	w = env.do(t, http.MethodPost, "/api/v1/backup/archive", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	for _, key := range []string{"csv", "xlsx"} {
		loc := body[key].(string)
		assert.True(t, strings.HasPrefix(loc, env.archive))
		_, err := os.Stat(loc)
		assert.NoError(t, err)
	}
}

func TestReportAndChat(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")

	w := env.do(t, http.MethodPost, "/api/v1/report", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty dataset")

	env.addEntry(t, token, "burger", 12, 30, 20)
	env.addEntry(t, token, "salad", 5, 15, 5)

	w = env.do(t, http.MethodPost, "/api/v1/report", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, `Raise BURGER by \$2 today`, body["report"])
	assert.Equal(t, 2.0, body["items_sent"])
	assert.Equal(t, "configured", env.model.key)
	assert.Contains(t, env.model.prompts[0], "BURGER;20;30;12;18;600;Star")
	assert.Contains(t, env.model.prompts[1], "Ana")

	w = env.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{"question": "What sells most?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `Raise BURGER by \$2 today`, decode(t, w)["answer"])

	w = env.do(t, http.MethodGet, "/api/v1/chat/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["messages"], 2)
}

func TestReportRateLimited(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")
	env.addEntry(t, token, "burger", 12, 30, 20)

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/report", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/v1/report", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w))
}

func TestReportNeedsKey(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")
	env.addEntry(t, token, "burger", 12, 30, 20)

	w := env.do(t, http.MethodPatch, "/api/v1/session", token, map[string]string{"provider": "deepseek", "model": "deepseek-chat"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/report", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/report", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(apiKeyHeader, "user-key")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user-key", env.model.key)
}

func TestChatSocketStreams(t *testing.T) {
	env := newTestEnv(t)
	token := env.startSession(t, "Ana")
	env.addEntry(t, token, "burger", 12, 30, 20)

	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/chat/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{Question: "How much is BURGER margin?"}))

	var chunks []string
	var done wsMessage
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "chunk" {
			chunks = append(chunks, msg.Content)
			continue
		}
		done = msg
		break
	}
	assert.Equal(t, "done", done.Type)
	assert.Equal(t, `Raise BURGER by \$2 today`, done.Content)
	assert.Equal(t, done.Content, strings.Join(chunks, ""))

	require.NoError(t, conn.WriteJSON(wsMessage{Question: ""}))
	var errMsg wsMessage
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, "error", errMsg.Type)

	w := env.do(t, http.MethodGet, "/api/v1/chat/history", token, nil)
	assert.Len(t, decode(t, w)["messages"], 2)
}
