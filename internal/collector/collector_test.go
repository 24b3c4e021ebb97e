package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"promoscrape/internal/export"
	"promoscrape/internal/promoscore"
	"promoscrape/internal/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeSource serves canned data keyed by retailer name, offer id and retailer id.
type fakeSource struct {
	offerIds map[string]string
	offers   map[string]string
	stores   map[string]string

	resolveErr map[string]error
	panics     map[string]bool
	delay      time.Duration

	inflight    atomic.Int64
	maxInflight atomic.Int64
}

func (f *fakeSource) ResolveOffer(ctx context.Context, retailer string) (string, bool, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		prev := f.maxInflight.Load()
		if n <= prev || f.maxInflight.CompareAndSwap(prev, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	if f.panics[retailer] {
		panic("boom")
	}
	if err := f.resolveErr[retailer]; err != nil {
		return "", false, err
	}
	id, ok := f.offerIds[retailer]
	return id, ok, nil
}

func (f *fakeSource) FetchOffer(ctx context.Context, offerId string) (*promoscore.Offer, error) {
	raw, ok := f.offers[offerId]
	if !ok {
		return nil, nil
	}
	var offer promoscore.Offer
	err := json.Unmarshal([]byte(raw), &offer)
	return &offer, err
}

func (f *fakeSource) FetchNearestStore(ctx context.Context, retailerId string) (*promoscore.Store, error) {
	raw, ok := f.stores[retailerId]
	if !ok {
		return nil, nil
	}
	var store promoscore.Store
	err := json.Unmarshal([]byte(raw), &store)
	return &store, err
}

func newLidlSource() *fakeSource {
	return &fakeSource{
		offerIds: map[string]string{"lidl": "O1", "aldi": "O2", "dino": "O3", "kaufland": "O4"},
		offers: map[string]string{
			"O1": `{"id":"O1","market":"PL","discount":10,"article":{"name":"Milk"},"retailer":{"id":"R1","name":"lidl"}}`,
			"O3": `{"id":"O3","retailer":{"name":"dino"}}`,
			"O4": `{"id":"O4","retailer":{"id":"R4","name":"kaufland"}}`,
		},
		stores: map[string]string{
			"R1": `{"city":"Warsaw","street":"Main St","zipCode":"00-001","location":[52.2,21.0],"gmapUrl":"http://x"}`,
		},
	}
}

func TestCollect(t *testing.T) {
	testCases := []struct {
		retailer string
		outcome  Outcome
		rows     int
		err      error
	}{
		{retailer: "lidl", outcome: OutcomeExported, rows: 1},
		{retailer: "biedronka", outcome: OutcomeNotFound},
		{retailer: "aldi", outcome: OutcomeNoOffer},
		{retailer: "dino", outcome: OutcomeFailed, err: ErrMissingRetailerID},
		{retailer: "kaufland", outcome: OutcomeNoStore},
	}

	c := NewCollector(newLidlSource(), 1, &telemetry.Recorder{})
	for _, test := range testCases {
		t.Run(test.retailer, func(t *testing.T) {
			rows, outcome, err := c.Collect(context.Background(), test.retailer)
			require.Equal(t, test.outcome, outcome)
			require.Len(t, rows, test.rows)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCollectRow(t *testing.T) {
	c := NewCollector(newLidlSource(), 1, &telemetry.Recorder{})
	rows, _, err := c.Collect(context.Background(), "lidl")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, export.Columns, row.Keys())
	for _, f := range row {
		require.NotNil(t, f.Value, f.Key)
	}
	lat, _ := row.Get(export.ColLat)
	lng, _ := row.Get(export.ColLng)
	require.Equal(t, "52.2", export.Cell(lat))
	require.Equal(t, "21.0", export.Cell(lng))
}

func TestRun(t *testing.T) {
	source := newLidlSource()
	source.resolveErr = map[string]error{"netto": errors.New("connection reset")}
	source.panics = map[string]bool{"zabka": true}

	rec := &telemetry.Recorder{}
	c := NewCollector(source, 3, rec)

	retailers := []string{"lidl", "biedronka", "aldi", "dino", "kaufland", "netto", "zabka"}
	result := c.Run(context.Background(), retailers)

	require.Len(t, result.Rows, 1)
	require.Len(t, result.Reports, len(retailers))
	require.Equal(t, map[Outcome]int{
		OutcomeExported: 1,
		OutcomeNotFound: 1,
		OutcomeNoOffer:  1,
		OutcomeNoStore:  1,
		OutcomeFailed:   3,
	}, result.Counts)

	byName := map[string]Report{}
	for _, report := range result.Reports {
		byName[report.Retailer] = report
	}
	require.Equal(t, OutcomeFailed, byName["zabka"].Outcome)
	require.ErrorContains(t, byName["zabka"].Err, "panic: boom")
	require.Equal(t, OutcomeFailed, byName["netto"].Outcome)
	require.ErrorContains(t, byName["netto"].Err, "connection reset")
	require.Equal(t, 1, byName["lidl"].Rows)

	require.Len(t, rec.Find("broken", report_collector_retailer), 3)
	counts := rec.Find("count", report_collector_rows)
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(1)}, counts[0].Params)
}

func TestRunManyRetailers(t *testing.T) {
	source := &fakeSource{
		offerIds: map[string]string{},
		offers:   map[string]string{},
		stores:   map[string]string{},
		delay:    5 * time.Millisecond,
	}
	var retailers []string
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("retailer-%02d", i)
		retailers = append(retailers, name)
		source.offerIds[name] = "O" + name
		source.offers["O"+name] = fmt.Sprintf(`{"id":"O%s","retailer":{"id":"R%s","name":%q}}`, name, name, name)
		source.stores["R"+name] = `{"location":[1,2]}`
	}

	result := NewCollector(source, 10, &telemetry.Recorder{}).Run(context.Background(), retailers)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Counts[OutcomeExported])
	require.LessOrEqual(t, source.maxInflight.Load(), int64(10))

	var names []string
	for _, row := range result.Rows {
		name, _ := row.Get(export.ColRetailerName)
		names = append(names, name.(string))
	}
	sort.Strings(names)
	require.Equal(t, retailers, names)
}

func TestRunEmpty(t *testing.T) {
	result := NewCollector(newLidlSource(), 10, &telemetry.Recorder{}).Run(context.Background(), nil)
	require.Empty(t, result.Rows)
	require.Empty(t, result.Reports)
}

func TestRunCancelled(t *testing.T) {
	source := newLidlSource()
	source.delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	go func() {
		time.Sleep(20 * time.Millisecond)
		once.Do(cancel)
	}()
	defer once.Do(cancel)

	retailers := []string{"lidl", "aldi", "dino", "kaufland", "biedronka"}
	start := time.Now()
	result := NewCollector(source, 2, &telemetry.Recorder{}).Run(ctx, retailers)

	require.Less(t, time.Since(start), time.Second)
	require.Len(t, result.Reports, len(retailers))
	require.Equal(t, len(retailers), result.Counts[OutcomeFailed])
	for _, report := range result.Reports {
		require.True(t, errors.Is(report.Err, context.Canceled), report.Retailer)
	}
	require.Empty(t, result.Rows)
}
