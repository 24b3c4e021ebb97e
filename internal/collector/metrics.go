package collector

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("promoscrape/collector")
var meter = otel.Meter("promoscrape/collector")

var retailerCounter, _ = meter.Int64Counter(
	"promoscrape.retailers",
	metric.WithDescription("Retailers processed, by outcome."),
)
var rowCounter, _ = meter.Int64Counter(
	"promoscrape.rows",
	metric.WithDescription("Rows collected."),
)
