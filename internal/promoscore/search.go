package promoscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

var (
	ErrNoResults = errors.New("search response has no results")
	ErrMatchNoID = errors.New("matched search hit has no id")
)

const (
	// coupons are excluded, only promotions printed in flyers are wanted
	searchFilters  = "NOT offer_type:coupon AND promo_location:flyer"
	highlightPre   = "__ais-highlight__"
	highlightPost  = "__/ais-highlight__"
	maxFacetValues = 20
)

var searchFacets = []string{"brand", "category", "characteristics_search", "market", "origin", "promo_score", "retailer"}

func (c *Client) searchBody(retailer string) []searchQuery {
	return []searchQuery{{
		IndexName: c.opts.IndexName,
		Params: searchParams{
			AroundLatLng: fmt.Sprintf(
				"%s, %s",
				formatCoordinate(c.opts.Anchor.Lat),
				formatCoordinate(c.opts.Anchor.Lng),
			),
			AroundRadius:      c.opts.SearchRadius,
			FacetFilters:      [][]string{{fmt.Sprintf("retailer:%s", retailer)}},
			Facets:            searchFacets,
			FavoriteKey:       "id",
			Filters:           searchFilters,
			HighlightPostTag:  highlightPost,
			HighlightPreTag:   highlightPre,
			HitsPerPage:       c.opts.HitsPerPage,
			MaxValuesPerFacet: maxFacetValues,
			Page:              0,
			Query:             "",
		},
	}}
}

// matchHit returns the first hit, in response order, whose retailer name
// equals retailer (already lowercased) ignoring case.
func matchHit(hits []searchHit, retailer string) (searchHit, bool) {
	for _, hit := range hits {
		if strings.ToLower(hit.retailerName()) == retailer {
			return hit, true
		}
	}
	return searchHit{}, false
}

// closestName returns the hit retailer name most similar to retailer.
func closestName(hits []searchHit, retailer string) (string, float64) {
	best := ""
	bestScore := -1.0
	for _, hit := range hits {
		name := strings.ToLower(hit.retailerName())
		score := matchr.JaroWinkler(name, retailer, false)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	return best, bestScore
}

// ResolveOffer searches for flyer promotions of the given retailer and
// returns the offer id of the first hit whose retailer name matches exactly
// (case-insensitive). found is false when nothing matched, which is not an error.
func (c *Client) ResolveOffer(ctx context.Context, retailer string) (id string, found bool, err error) {
	retailer = strings.ToLower(retailer)

	body, err := json.Marshal(c.searchBody(retailer))
	if err != nil {
		c.tel.ReportBroken(report_client_search, fmt.Errorf("json marshal: %w", err))
		return "", false, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetPathParam("index", c.opts.IndexName).
		SetBody(body).
		Post("/api/search/{index}")
	if err != nil {
		err = fmt.Errorf("fetch: %w", err)
		c.tel.ReportBroken(report_client_search, err, retailer)
		return "", false, err
	}
	if !res.IsSuccess() {
		err = fmt.Errorf("unexpected status: %s", res.Status())
		c.tel.ReportBroken(report_client_search, err, retailer)
		return "", false, err
	}

	var parsed searchResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		err = fmt.Errorf("unmarshal json: %w", err)
		c.tel.ReportBroken(report_client_search, err, retailer)
		return "", false, err
	}
	if len(parsed.Results) == 0 {
		c.tel.ReportBroken(report_client_search, ErrNoResults, retailer)
		return "", false, ErrNoResults
	}

	hits := parsed.Results[0].Hits
	c.tel.ReportDebug("search hits", retailer, len(hits))

	hit, ok := matchHit(hits, retailer)
	if !ok {
		if len(hits) > 0 {
			name, score := closestName(hits, retailer)
			c.tel.ReportWarning(
				report_client_search_match,
				fmt.Sprintf("no exact match for %q, closest hit is %q", retailer, name),
				score,
			)
		}
		return "", false, nil
	}

	id, ok = hit.ID.Text()
	if !ok || id == "" {
		c.tel.ReportBroken(report_client_search, ErrMatchNoID, retailer)
		return "", false, ErrMatchNoID
	}
	return id, true, nil
}
