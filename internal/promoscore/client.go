package promoscore

import (
	"fmt"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"promoscrape/internal/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	report_client_new          = "client.new"
	report_client_search       = "client.search"
	report_client_fetch_offer  = "client.fetch-offer"
	report_client_fetch_store  = "client.fetch-nearest-store"
	report_client_search_match = "client.search-match"
)

type ClientOptions struct {
	BaseUrl   string
	IndexName string

	// Anchor is used both as the search center and as the nearest-store reference point.
	Anchor        Coordinate
	SearchRadius  int
	HitsPerPage   int
	StoreDistance int

	// Timeout applies per request, zero means no timeout.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests, zero means unlimited.
	RequestsPerSecond float64

	Headers map[string]string
	Cookies map[string]string

	// HttpOutput can be nil, if it isn't every exchange is dumped to it.
	HttpOutput telemetry.HttpOutput
}

// Client talks to the promoscore web API. It is safe for concurrent use.
type Client struct {
	http *resty.Client
	tel  telemetry.API
	opts ClientOptions
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	tel = telemetry.NewScopedAPI("promoscore", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		tel.ReportBroken(report_client_new, fmt.Errorf("parse base url: %w", err), opts.BaseUrl)
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		tel.ReportBroken(report_client_new, fmt.Errorf("create cookie jar: %w", err))
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.SetHeaders(opts.Headers)

	cookies := make([]*http.Cookie, 0, len(opts.Cookies))
	for name, value := range opts.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  value,
			Domain: baseUrl.Hostname(),
			Path:   "/",
		})
	}
	httpClient.SetCookies(cookies)

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 so a fractional rate still lets requests through
		burst := int(math.Max(1, math.Ceil(opts.RequestsPerSecond)))
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, "promoscrape/promoscore", tel, opts.HttpOutput)

	return &Client{http: httpClient, tel: tel, opts: opts}, nil
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
