package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

type capturedBatch struct {
	Decisions []Record `json:"decisions"`
}

func TestExporterRequiresURL(t *testing.T) {
	_, err := NewExporter(ExporterConfig{})
	require.Error(t, err)
}

func TestFlushSendsPendingBatch(t *testing.T) {
	var mu sync.Mutex
	var batches []capturedBatch
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b capturedBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		mu.Lock()
		batches = append(batches, b)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
	}))
	defer srv.Close()

	exp, err := NewExporter(ExporterConfig{WebhookURL: srv.URL, WebhookAPIKey: "secret"})
	require.NoError(t, err)

	exp.Add(Record{
		WhaleAddress:   "0x742d35cc6634c0532925a3b8d4c9db96590f6c7e",
		Strategy:       "advisory",
		Recommendation: model.Recommendation{ShouldCopy: true, Confidence: 80},
		IssuedAt:       1756400000,
	})
	exp.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Decisions, 1)
	assert.Equal(t, "0x742d35cc6634c0532925a3b8d4c9db96590f6c7e", batches[0].Decisions[0].WhaleAddress)
	assert.Equal(t, "Bearer secret", auth)
}

func TestFullBatchFlushesEarly(t *testing.T) {
	var mu sync.Mutex
	received := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b capturedBatch
		json.NewDecoder(r.Body).Decode(&b)
		mu.Lock()
		received += len(b.Decisions)
		mu.Unlock()
	}))
	defer srv.Close()

	exp, err := NewExporter(ExporterConfig{WebhookURL: srv.URL, BatchSize: 2})
	require.NoError(t, err)

	exp.Add(Record{Strategy: "heuristic"})
	mu.Lock()
	assert.Zero(t, received, "below batch size nothing is sent")
	mu.Unlock()

	exp.Add(Record{Strategy: "heuristic"})
	mu.Lock()
	assert.Equal(t, 2, received)
	mu.Unlock()
}

func TestFailedFlushDropsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exp, err := NewExporter(ExporterConfig{WebhookURL: srv.URL})
	require.NoError(t, err)

	exp.Add(Record{Strategy: "advisory"})
	exp.Flush()

	// The batch was consumed even though delivery failed; a second flush
	// sends nothing
	exp.mu.Lock()
	assert.Empty(t, exp.pending)
	exp.mu.Unlock()
}
