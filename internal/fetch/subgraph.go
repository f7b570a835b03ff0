package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/config"
	"github.com/yourorg/whale-copy-engine/internal/model"
)

// SubgraphClient queries the indexing subgraph for whale candidates.
// Unlike the advisory client it is allowed to retry: discovery is a
// background refresh and does not gate any decision.
type SubgraphClient struct {
	url           string
	minVolumeUSD  float64
	minTradeCount int64
	httpClient    *http.Client
}

// NewSubgraphClient creates a discovery client from configuration.
func NewSubgraphClient(cfg config.Config) *SubgraphClient {
	return &SubgraphClient{
		url:           cfg.SubgraphURL,
		minVolumeUSD:  cfg.MinWhaleVolume,
		minTradeCount: cfg.MinWhaleTrades,
		httpClient:    newBackgroundClient(30 * time.Second),
	}
}

// whaleQuery selects high-volume traders ordered by win rate. The
// volume and trade-count floors keep the result set to serious
// candidates only.
const whaleQuery = `query GetTopTraders($minVolume: String!, $minTrades: String!) {
  whales(
    where: { totalVolumeUSD_gt: $minVolume, totalTrades_gt: $minTrades }
    orderBy: winRate
    orderDirection: desc
    first: 100
  ) {
    id
    winRate
    totalVolumeUSD
    totalTrades
    successfulTrades
    lastTradeTimestamp
    isActive
  }
}`

// graphRequest is the standard GraphQL-over-HTTP request envelope
type graphRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// subgraphWhale matches one whale entity in the subgraph response.
// The Graph serializes BigInt and BigDecimal fields as strings.
type subgraphWhale struct {
	ID                 string `json:"id"`
	WinRate            string `json:"winRate"`
	TotalVolumeUSD     string `json:"totalVolumeUSD"`
	TotalTrades        string `json:"totalTrades"`
	SuccessfulTrades   string `json:"successfulTrades"`
	LastTradeTimestamp string `json:"lastTradeTimestamp"`
	IsActive           bool   `json:"isActive"`
}

// FetchWhales retrieves the current whale candidates from the subgraph
// and converts them to records.
func (c *SubgraphClient) FetchWhales(ctx context.Context) ([]model.WhaleRecord, error) {
	if c.url == "" {
		return nil, fmt.Errorf("subgraph URL not configured")
	}

	body, err := json.Marshal(graphRequest{
		Query: whaleQuery,
		Variables: map[string]interface{}{
			"minVolume": strconv.FormatFloat(c.minVolumeUSD, 'f', -1, 64),
			"minTrades": strconv.FormatInt(c.minTradeCount, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding subgraph query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating subgraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logrus.Debugf("Fetching whale candidates from subgraph: %s", c.url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying subgraph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("subgraph error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var response struct {
		Data struct {
			Whales []subgraphWhale `json:"whales"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding subgraph response: %w", err)
	}

	records := make([]model.WhaleRecord, 0, len(response.Data.Whales))
	for _, w := range response.Data.Whales {
		rec, err := w.toRecord()
		if err != nil {
			logrus.Warnf("Skipping malformed subgraph whale %s: %v", w.ID, err)
			continue
		}
		records = append(records, rec)
	}

	logrus.Debugf("Received %d whale candidates from subgraph", len(records))
	return records, nil
}

func (w subgraphWhale) toRecord() (model.WhaleRecord, error) {
	winRate, err := strconv.ParseFloat(w.WinRate, 64)
	if err != nil {
		return model.WhaleRecord{}, fmt.Errorf("bad winRate %q: %w", w.WinRate, err)
	}
	volume, err := strconv.ParseFloat(w.TotalVolumeUSD, 64)
	if err != nil {
		return model.WhaleRecord{}, fmt.Errorf("bad totalVolumeUSD %q: %w", w.TotalVolumeUSD, err)
	}
	trades, err := strconv.ParseInt(w.TotalTrades, 10, 64)
	if err != nil {
		return model.WhaleRecord{}, fmt.Errorf("bad totalTrades %q: %w", w.TotalTrades, err)
	}
	successes, err := strconv.ParseInt(w.SuccessfulTrades, 10, 64)
	if err != nil {
		return model.WhaleRecord{}, fmt.Errorf("bad successfulTrades %q: %w", w.SuccessfulTrades, err)
	}
	lastTrade, err := strconv.ParseInt(w.LastTradeTimestamp, 10, 64)
	if err != nil {
		return model.WhaleRecord{}, fmt.Errorf("bad lastTradeTimestamp %q: %w", w.LastTradeTimestamp, err)
	}

	return model.WhaleRecord{
		Address:          model.NormalizeAddress(w.ID),
		TotalTrades:      trades,
		SuccessfulTrades: successes,
		TotalVolumeUSD:   volume,
		WinRate7d:        winRate,
		WinRate30d:       winRate,
		LastTradeAt:      lastTrade,
		IsActive:         w.IsActive,
	}, nil
}
