package promoscore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// fetchData runs req and decodes the `data` field of the response into out.
// A non-2xx status or an empty payload (null or {}) yields found = false.
func (c *Client) fetchData(req *resty.Request, endpoint, reportId string, out any) (found bool, err error) {
	res, err := req.Get(endpoint)
	if err != nil {
		err = fmt.Errorf("fetch: %w", err)
		c.tel.ReportBroken(reportId, err, req.URL)
		return false, err
	}
	if !res.IsSuccess() {
		c.tel.ReportDebug("no data", reportId, res.Request.URL, res.Status())
		return false, nil
	}

	var envelope dataEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		err = fmt.Errorf("unmarshal json: %w", err)
		c.tel.ReportBroken(reportId, err, res.Request.URL)
		return false, err
	}
	if envelope.Data.IsNull() || bytes.Equal(bytes.TrimSpace(envelope.Data), []byte("{}")) {
		return false, nil
	}

	err = json.Unmarshal(envelope.Data, out)
	if err != nil {
		err = fmt.Errorf("unmarshal data: %w", err)
		c.tel.ReportBroken(reportId, err, res.Request.URL)
		return false, err
	}
	return true, nil
}

// FetchOffer returns the offer with the given id, or nil if upstream has no
// data for it.
func (c *Client) FetchOffer(ctx context.Context, offerId string) (*Offer, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", offerId)

	var offer Offer
	found, err := c.fetchData(req, "/api/offers/{id}", report_client_fetch_offer, &offer)
	if err != nil || !found {
		return nil, err
	}
	return &offer, nil
}

// FetchNearestStore returns the store of the given retailer closest to the
// anchor, or nil if upstream has no data for it.
func (c *Client) FetchNearestStore(ctx context.Context, retailerId string) (*Store, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", retailerId).
		SetQueryParam("latLng", fmt.Sprintf(
			"%s,%s",
			formatCoordinate(c.opts.Anchor.Lat),
			formatCoordinate(c.opts.Anchor.Lng),
		)).
		SetQueryParam("distance", strconv.Itoa(c.opts.StoreDistance))

	var store Store
	found, err := c.fetchData(req, "/api/retailers/{id}/nearest-store", report_client_fetch_store, &store)
	if err != nil || !found {
		return nil, err
	}
	return &store, nil
}
