package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_OK(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"total\":1}"}}]}`))
	}))
	defer srv.Close()

	out, err := NewClient(Config{APIKey: "sk", BaseURL: srv.URL}, nil).Generate(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, `{"total":1}`, out)
	assert.Equal(t, "Bearer sk", gotAuth)
	assert.Equal(t, DefaultModel, gotBody["model"])
	assert.NotContains(t, gotBody, "temperature")
	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
}

func TestGenerate_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "bad", BaseURL: srv.URL}, nil).Generate(context.Background(), "p")
	var pe *common.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.Contains(t, err.Error(), "Incorrect API key")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	_, err = NewClient(Config{APIKey: "k", BaseURL: empty.URL}, nil).Generate(context.Background(), "p")
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "no choices")
}
