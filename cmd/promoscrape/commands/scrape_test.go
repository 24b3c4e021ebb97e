package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"promoscrape/internal/config"
	"promoscrape/internal/telemetry"

	"github.com/stretchr/testify/require"
)

func newScrapeConfig(t testing.TB, searchBody string, outputs ...string) config.Config {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/search-promoscore-promotions", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, searchBody)
	})
	mux.HandleFunc("/api/offers/O1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"id":"O1","retailer":{"id":"R1","name":"lidl"}}}`)
	})
	mux.HandleFunc("/api/retailers/R1/nearest-store", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"city":"Warsaw","location":[52.2,21.0]}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.BaseUrl = server.URL
	cfg.Retailers = []string{"lidl"}
	cfg.Outputs = outputs
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestScrapeWriteFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	good := filepath.Join(dir, "retailers.csv")
	bad := filepath.Join(blocker, "retailers.csv")
	cfg := newScrapeConfig(t, `{"results":[{"hits":[{"id":"O1","retailer":{"name":"lidl"}}]}]}`, bad, good)

	var summary bytes.Buffer
	err := scrape(context.Background(), cfg, &summary)
	require.Error(t, err)
	require.Contains(t, err.Error(), bad)

	// the other output is still written
	_, err = os.Stat(good)
	require.NoError(t, err)
	require.Contains(t, summary.String(), "lidl")
}

func TestScrapeNothingToWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retailers.csv")
	cfg := newScrapeConfig(t, `{"results":[{"hits":[]}]}`, path)

	err := scrape(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestWithTelemetryReturnsError(t *testing.T) {
	failure := errors.New("write output: disk full")

	called := false
	err := withTelemetry(context.Background(), telemetry.Config{}, func(ctx context.Context) error {
		called = true
		return failure
	})
	require.True(t, called)
	require.ErrorIs(t, err, failure)
}
