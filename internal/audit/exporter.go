// Package audit ships issued decisions to an external webhook in
// batches, giving operators an offline trail of what the engine
// recommended and why.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

// Record is one exported decision.
type Record struct {
	WhaleAddress   string               `json:"whale_address"`
	Strategy       string               `json:"strategy"`
	Recommendation model.Recommendation `json:"recommendation"`
	Fallback       bool                 `json:"fallback"`
	FallbackReason string               `json:"fallback_reason,omitempty"`
	IssuedAt       int64                `json:"issued_at"`
}

// ExporterConfig configures the decision exporter.
type ExporterConfig struct {
	WebhookURL    string
	WebhookAPIKey string

	// BatchSize flushes early when this many records are pending (default 100)
	BatchSize int

	// FlushInterval flushes pending records on a timer (default 1m)
	FlushInterval time.Duration
}

// Exporter batches decision records and POSTs them to the webhook. Lost
// batches are logged and dropped; the audit trail is best-effort and
// must never block or fail a decision.
type Exporter struct {
	cfg        ExporterConfig
	httpClient *http.Client

	mu      sync.Mutex
	pending []Record
}

// NewExporter creates an exporter. An empty webhook URL is a
// configuration error.
func NewExporter(cfg ExporterConfig) (*Exporter, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("audit webhook URL not configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	return &Exporter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Add queues one decision record, flushing if the batch is full.
func (e *Exporter) Add(rec Record) {
	e.mu.Lock()
	e.pending = append(e.pending, rec)
	full := len(e.pending) >= e.cfg.BatchSize
	e.mu.Unlock()

	if full {
		e.Flush()
	}
}

// Run flushes on a timer until the context is cancelled, then drains
// once more.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Flush()
			return
		case <-ticker.C:
			e.Flush()
		}
	}
}

// Flush sends all pending records in one request.
func (e *Exporter) Flush() {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"decisions":   batch,
		"exported_at": time.Now().Unix(),
	})
	if err != nil {
		logrus.Warnf("Failed to encode audit batch: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, e.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		logrus.Warnf("Failed to build audit request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		logrus.Warnf("Audit export failed, dropping %d records: %v", len(batch), err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logrus.Warnf("Audit webhook returned status %d, dropped %d records", resp.StatusCode, len(batch))
		return
	}

	logrus.Debugf("Exported %d decision records", len(batch))
}
