package llm

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendJSON_LogsBatchAndRequestIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := common.WithRequestID(common.WithBatchID(context.Background(), "batch-1"), "req-9")

	raw, status, err := SendJSON(ctx, srv.Client(), srv.URL, map[string]string{"a": "b"}, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	out := buf.String()
	assert.Contains(t, out, `"msg":"llm.http.request"`)
	assert.Contains(t, out, `"batch_id":"batch-1"`)
	assert.Contains(t, out, `"request_id":"req-9"`)
}

func TestSendJSON_NoIDsOutsideBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	_, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, struct{}{}, nil, logger)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.NotContains(t, buf.String(), "batch_id")
	assert.NotContains(t, buf.String(), "request_id")
}
