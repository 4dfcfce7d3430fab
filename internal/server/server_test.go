package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manak-ai/stratum/internal/config"
	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/service"
	"github.com/manak-ai/stratum/internal/tool"
)

// stubInference fakes the three inference endpoints with deterministic
// responses so the full pipeline runs without models.
func stubInference(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		switch r.URL.Path {
		case "/embed":
			var req struct {
				Inputs []string `json:"inputs"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			vecs := make([][]float32, len(req.Inputs))
			for i, text := range req.Inputs {
				vecs[i] = []float32{
					1,
					float32(strings.Count(text, "e")%5) + 0.5,
					float32(len(text)%7) + 0.25,
				}
			}
			writeJSON(w, map[string]any{"embeddings": vecs, "dims": 3})
		case "/rerank":
			var req struct {
				Texts []string `json:"texts"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			scores := make([]float64, len(req.Texts))
			for i := range scores {
				scores[i] = 1 / float64(i+1)
			}
			writeJSON(w, map[string]any{"scores": scores})
		case "/summarize":
			writeJSON(w, map[string]any{"summary": "stub summary of the indexed content"})
		default:
			http.NotFound(w, r)
		}
	}))
}

// stubDMS serves one document with two attachments; the pipeline must
// download the one with the higher order.
func stubDMS(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/document/doc-1":
			writeJSON(w, map[string]any{
				"id":   "doc-1",
				"name": "User Guide",
				"attachments": []map[string]any{
					{"id": "a1", "filePath": "/files/old.md", "fileName": "old.md", "mimeType": "text/markdown", "order": 1},
					{"id": "a2", "filePath": "/files/guide.md", "fileName": "guide.md", "mimeType": "text/markdown", "order": 2},
				},
			})
		case r.URL.Path == "/api/v1/file/files/guide.md":
			_, _ = w.Write([]byte(content))
		default:
			http.NotFound(w, r)
		}
	}))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T, docContent string) (*httptest.Server, *service.Container) {
	t.Helper()

	inference := stubInference(t)
	t.Cleanup(inference.Close)
	dms := stubDMS(t, docContent)
	t.Cleanup(dms.Close)

	cfg := config.Default()
	cfg.Inference.BaseURL = inference.URL
	cfg.Clients.DMS.BaseURL = dms.URL
	cfg.Clients.RMS.BaseURL = dms.URL
	cfg.Storage.Dir = t.TempDir()
	cfg.Indexing.Workers = 2

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	container := service.NewContainer(cfg, log)
	registry := tool.NewRegistry(container, log)

	srv := httptest.NewServer(New(container, registry, log).Handler())
	t.Cleanup(srv.Close)
	return srv, container
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthcheck(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, "UP", body["status"])
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

func TestDocumentIngestAndQuery(t *testing.T) {
	content := "# Payment Guide\n\nRefunds are processed within five business days. " +
		"Chargebacks follow the card network dispute flow and must be answered in time."
	srv, container := newTestServer(t, content)

	resp := postJSON(t, srv.URL+"/api/v1/document", map[string]string{"documentId": "doc-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ack := decodeBody[model.DocumentResponse](t, resp)
	assert.Equal(t, "doc-1", ack.DocumentID)
	assert.Equal(t, model.StatusAccepted, ack.Status)

	container.Pool().Wait()

	resp = postJSON(t, srv.URL+"/api/v1/document/overview/query",
		map[string]any{"query": "refund processing", "topK": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ov := decodeBody[model.OverviewResponse](t, resp)
	require.NotEmpty(t, ov.Overviews)
	assert.Equal(t, "doc-1_overview", ov.Overviews[0].ID)

	resp = postJSON(t, srv.URL+"/api/v1/document/chunk/query",
		map[string]any{"query": "refund processing", "top_k": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ch := decodeBody[model.ChunkResponse](t, resp)
	require.NotEmpty(t, ch.Chunks)
	assert.NotEmpty(t, ch.FinalSummary)
	assert.Equal(t, 3, ch.TopK)
}

func TestQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t, "hello world content for the index")

	resp := postJSON(t, srv.URL+"/api/v1/document/overview/query", map[string]any{"query": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[model.ErrorResponse](t, resp)
	assert.Equal(t, "EMPTY_QUERY", body.Code)
}

func TestMalformedJSONRejected(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	resp, err := http.Post(srv.URL+"/api/v1/document", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToolInvokeRequiresToolID(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	resp := postJSON(t, srv.URL+"/api/v1/tool/invoke", map[string]any{"params": map[string]any{}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[model.ErrorResponse](t, resp)
	assert.Equal(t, "MISSING_TOOL_ID", body.Code)
}

func TestToolInvokeUnknownTool(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	resp := postJSON(t, srv.URL+"/api/v1/tool/invoke", map[string]any{"toolId": "nope"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[model.InvokeResponse](t, resp)
	assert.Equal(t, "nope", body.ToolID)
	assert.NotEmpty(t, body.Error)
	assert.Nil(t, body.Result)
}

func TestToolInvokeRunsQuery(t *testing.T) {
	content := "# Ops Runbook\n\nRestart the ingest worker when the queue depth " +
		"alarm fires. Check disk pressure on the snapshot volume first."
	srv, container := newTestServer(t, content)

	resp := postJSON(t, srv.URL+"/api/v1/document", map[string]string{"documentId": "doc-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = decodeBody[model.DocumentResponse](t, resp)
	container.Pool().Wait()

	resp = postJSON(t, srv.URL+"/api/v1/tool/invoke", map[string]any{
		"toolId": tool.DocumentOverviewQuery,
		"params": map[string]any{
			"queryRequest": map[string]any{"query": "queue depth alarm", "topK": 2},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[model.InvokeResponse](t, resp)
	assert.Empty(t, body.Error)
	require.NotNil(t, body.Result)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/document", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, _ := newTestServer(t, "hello")

	resp, err := http.Get(srv.URL + "/api/v1/nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
