package collector

import (
	"context"
	"errors"
	"fmt"

	"promoscrape/internal/export"
	"promoscrape/internal/promoscore"
	"promoscrape/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_collector_collect  = "collector.collect"
	report_collector_retailer = "collector.retailer"
	report_collector_rows     = "collector.rows"
)

// ErrMissingRetailerID means an offer carries no retailer id, so its nearest
// store cannot be looked up.
var ErrMissingRetailerID = errors.New("missing retailer id")

// Outcome classifies how processing a single retailer ended.
type Outcome string

const (
	OutcomeExported Outcome = "exported"
	OutcomeNotFound Outcome = "not_found"
	OutcomeNoOffer  Outcome = "no_offer"
	OutcomeNoStore  Outcome = "no_store"
	OutcomeFailed   Outcome = "failed"
)

// Outcomes lists every outcome in summary order.
var Outcomes = []Outcome{OutcomeExported, OutcomeNotFound, OutcomeNoOffer, OutcomeNoStore, OutcomeFailed}

// Source is the upstream API the collector reads from, *promoscore.Client
// implements it.
type Source interface {
	ResolveOffer(ctx context.Context, retailer string) (id string, found bool, err error)
	FetchOffer(ctx context.Context, offerId string) (*promoscore.Offer, error)
	FetchNearestStore(ctx context.Context, retailerId string) (*promoscore.Store, error)
}

var _ Source = (*promoscore.Client)(nil)

type Collector struct {
	source  Source
	workers int
	tel     telemetry.API
}

// NewCollector creates a collector running at most `workers` retailers at
// once, values below 1 mean a single worker.
func NewCollector(source Source, workers int, tel telemetry.API) Collector {
	return Collector{
		source:  source,
		workers: max(1, workers),
		tel:     telemetry.NewScopedAPI("collector", tel),
	}
}

// Collect runs search, offer lookup and nearest store lookup for one
// retailer. Absent data upstream is not an error, it ends the pipeline early
// with the matching outcome and no rows.
func (c Collector) Collect(ctx context.Context, retailer string) ([]export.Row, Outcome, error) {
	ctx, span := tracer.Start(ctx, "collect", trace.WithAttributes(
		attribute.String("retailer", retailer),
	))
	defer span.End()

	rows, outcome, err := c.collect(ctx, retailer)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return rows, outcome, err
}

func (c Collector) collect(ctx context.Context, retailer string) ([]export.Row, Outcome, error) {
	offerId, found, err := c.source.ResolveOffer(ctx, retailer)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("resolve offer: %w", err)
	}
	if !found {
		c.tel.ReportDebug("no matching offer", retailer)
		return nil, OutcomeNotFound, nil
	}

	offer, err := c.source.FetchOffer(ctx, offerId)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("fetch offer %s: %w", offerId, err)
	}
	if offer == nil {
		c.tel.ReportDebug("offer not available", retailer, offerId)
		return nil, OutcomeNoOffer, nil
	}

	retailerId, ok := offer.RetailerID()
	if !ok {
		c.tel.ReportBroken(report_collector_collect, ErrMissingRetailerID, retailer, offerId)
		return nil, OutcomeFailed, fmt.Errorf("offer %s: %w", offerId, ErrMissingRetailerID)
	}

	store, err := c.source.FetchNearestStore(ctx, retailerId)
	if err != nil {
		return nil, OutcomeFailed, fmt.Errorf("fetch nearest store %s: %w", retailerId, err)
	}
	if store == nil {
		c.tel.ReportDebug("no nearest store", retailer, retailerId)
		return nil, OutcomeNoStore, nil
	}

	return []export.Row{export.Flatten(offer, store)}, OutcomeExported, nil
}
