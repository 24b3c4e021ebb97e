package collector

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"promoscrape/internal/export"
	"promoscrape/internal/promoscore"
	"promoscrape/internal/telemetry"

	"github.com/stretchr/testify/require"
)

func newUpstream(t testing.TB, searchBody string) *promoscore.Client {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/search-promoscore-promotions", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, searchBody)
	})
	mux.HandleFunc("/api/offers/R1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{
			"id":"O1","market":"PL","discount":10,
			"article":{"name":"Milk"},
			"retailer":{"id":"R1songs","name":"lidl"}
		}}`)
	})
	mux.HandleFunc("/api/retailers/R1songs/nearest-store", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{
			"city":"Warsaw","street":"Main St","zipCode":"00-001",
			"location":[52.2,21.0],"gmapUrl":"http://x"
		}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := promoscore.NewClient(promoscore.ClientOptions{
		BaseUrl:       server.URL,
		IndexName:     "search-promoscore-promotions",
		Anchor:        promoscore.Coordinate{Lat: 44.4267674, Lng: 26.1025384},
		SearchRadius:  90000000,
		HitsPerPage:   3,
		StoreDistance: 9000000,
	}, &telemetry.Recorder{})
	require.NoError(t, err)
	return client
}

func TestPipelineSingleRetailer(t *testing.T) {
	client := newUpstream(t, `{"results":[{"hits":[{"retailer":{"name":"lidl"},"id":"R1"}]}]}`)
	result := NewCollector(client, 10, &telemetry.Recorder{}).Run(context.Background(), []string{"lidl"})
	require.Equal(t, 1, result.Counts[OutcomeExported])

	path := filepath.Join(t.TempDir(), "retailer_store_data", "retailers.csv")
	err := export.NewCSVWriter(path, &telemetry.Recorder{}).Write(context.Background(), result.Rows)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Equal(t, [][]string{
		export.Columns,
		{"lidl", "R1songs", "O1", "Milk", "PL", "10", "Warsaw", "Main St", "00-001", "52.2", "21.0", "http://x"},
	}, records)
}

func TestPipelineNoHits(t *testing.T) {
	client := newUpstream(t, `{"results":[{"hits":[]}]}`)
	result := NewCollector(client, 10, &telemetry.Recorder{}).Run(context.Background(), []string{"biedronka"})
	require.Empty(t, result.Rows)
	require.Equal(t, 1, result.Counts[OutcomeNotFound])

	path := filepath.Join(t.TempDir(), "retailers.csv")
	err := export.NewCSVWriter(path, &telemetry.Recorder{}).Write(context.Background(), result.Rows)
	require.ErrorIs(t, err, export.ErrNothingToWrite)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
