package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/whale-copy-engine/internal/config"
)

func subgraphConfig(url string) config.Config {
	return config.Config{
		SubgraphURL:    url,
		MinWhaleVolume: 10000,
		MinWhaleTrades: 10,
	}
}

func TestFetchWhales(t *testing.T) {
	var captured graphRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"data":{"whales":[
			{"id":"0x742D35CC6634C0532925A3B8D4C9DB96590F6C7E","winRate":"0.68",
			 "totalVolumeUSD":"1250000.5","totalTrades":"145","successfulTrades":"98",
			 "lastTradeTimestamp":"1756400000","isActive":true},
			{"id":"0x8ba1f109551bd432803012645ac136ddd64dba72","winRate":"0.59",
			 "totalVolumeUSD":"480000","totalTrades":"67","successfulTrades":"40",
			 "lastTradeTimestamp":"1756300000","isActive":false}
		]}}`))
	}))
	defer srv.Close()

	client := NewSubgraphClient(subgraphConfig(srv.URL))
	records, err := client.FetchWhales(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "10000", captured.Variables["minVolume"])
	assert.Equal(t, "10", captured.Variables["minTrades"])

	first := records[0]
	assert.Equal(t, "0x742d35cc6634c0532925a3b8d4c9db96590f6c7e", first.Address, "address lowercased")
	assert.Equal(t, 0.68, first.WinRate30d)
	assert.Equal(t, 0.68, first.WinRate7d)
	assert.Equal(t, 1250000.5, first.TotalVolumeUSD)
	assert.Equal(t, int64(145), first.TotalTrades)
	assert.Equal(t, int64(98), first.SuccessfulTrades)
	assert.Equal(t, int64(1756400000), first.LastTradeAt)
	assert.True(t, first.IsActive)
	assert.False(t, records[1].IsActive)
}

func TestFetchWhalesSkipsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"whales":[
			{"id":"0xaaa","winRate":"not-a-number","totalVolumeUSD":"1","totalTrades":"1",
			 "successfulTrades":"1","lastTradeTimestamp":"1","isActive":true},
			{"id":"0xbbb","winRate":"0.5","totalVolumeUSD":"20000","totalTrades":"30",
			 "successfulTrades":"15","lastTradeTimestamp":"1756400000","isActive":true}
		]}}`))
	}))
	defer srv.Close()

	client := NewSubgraphClient(subgraphConfig(srv.URL))
	records, err := client.FetchWhales(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xbbb", records[0].Address)
}

func TestFetchWhalesErrors(t *testing.T) {
	t.Run("unconfigured URL", func(t *testing.T) {
		client := NewSubgraphClient(subgraphConfig(""))
		_, err := client.FetchWhales(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("backend failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 400 is not retried by the background client, so the
			// failure surfaces immediately
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		client := NewSubgraphClient(subgraphConfig(srv.URL))
		_, err := client.FetchWhales(context.Background())
		require.Error(t, err)
	})
}
