package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiServer(t *testing.T, text string, gotBody *string, gotPath *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		*gotBody = string(raw)
		*gotPath = r.URL.Path

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGeneratorReturnsCandidateText(t *testing.T) {
	var body, path string
	srv := newGeminiServer(t, "Relatório clínico.", &body, &path)

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-2.5-pro",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "Nome: Ana")
	require.NoError(t, err)
	assert.Equal(t, "Relatório clínico.", text)
	assert.Contains(t, path, "gemini-2.5-pro:generateContent")
	assert.Contains(t, body, "Nome: Ana")
}

func TestGeminiGeneratorRejectsEmptyText(t *testing.T) {
	var body, path string
	srv := newGeminiServer(t, "  ", &body, &path)

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-2.5-pro",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), GeminiConfig{Model: "gemini-2.5-pro"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
