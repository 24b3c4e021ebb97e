package promoscore

import (
	"bytes"
	"encoding/json"
)

// Value is a JSON value kept exactly as upstream sent it, upstream is not
// consistent about types (ids show up both as strings and numbers) so
// nothing is validated at decode time. A missing field and an explicit null
// are both null.
type Value json.RawMessage

func (v *Value) UnmarshalJSON(b []byte) error {
	*v = append((*v)[0:0], b...)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	return v, nil
}

func (v Value) IsNull() bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Any converts the value into nil, string, bool or json.Number. Objects and
// arrays are returned as their JSON text.
func (v Value) Any() any {
	if v.IsNull() {
		return nil
	}
	trimmed := bytes.TrimSpace(v)
	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(trimmed, &s) != nil {
			return string(trimmed)
		}
		return s
	case 't':
		return true
	case 'f':
		return false
	case '{', '[':
		return string(trimmed)
	}
	return json.Number(trimmed)
}

// Text returns the value as a plain string, ok is false for null.
func (v Value) Text() (string, bool) {
	switch x := v.Any().(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	}
	return string(bytes.TrimSpace(v)), true
}

// Elements decodes an array value, it returns nil for null or non-array values.
func (v Value) Elements() []Value {
	if v.IsNull() {
		return nil
	}
	var elems []Value
	if json.Unmarshal(v, &elems) != nil {
		return nil
	}
	return elems
}

type Article struct {
	Name Value `json:"name"`
}

type RetailerRef struct {
	ID   Value `json:"id"`
	Name Value `json:"name"`
}

// Offer is the `data` payload of the offer-by-id endpoint, trimmed to what is exported.
type Offer struct {
	ID       Value        `json:"id"`
	Market   Value        `json:"market"`
	Discount Value        `json:"discount"`
	Article  *Article     `json:"article"`
	Retailer *RetailerRef `json:"retailer"`
}

// RetailerID returns the id of the retailer the offer belongs to.
func (o Offer) RetailerID() (string, bool) {
	if o.Retailer == nil {
		return "", false
	}
	id, ok := o.Retailer.ID.Text()
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Store is the `data` payload of the nearest-store endpoint.
type Store struct {
	City    Value `json:"city"`
	Street  Value `json:"street"`
	ZipCode Value `json:"zipCode"`
	// Location is [lat, lng] when present.
	Location Value `json:"location"`
	GmapUrl  Value `json:"gmapUrl"`
}

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

type searchParams struct {
	AroundLatLng      string     `json:"aroundLatLng"`
	AroundRadius      int        `json:"aroundRadius"`
	FacetFilters      [][]string `json:"facetFilters"`
	Facets            []string   `json:"facets"`
	FavoriteKey       string     `json:"favoriteKey"`
	Filters           string     `json:"filters"`
	HighlightPostTag  string     `json:"highlightPostTag"`
	HighlightPreTag   string     `json:"highlightPreTag"`
	HitsPerPage       int        `json:"hitsPerPage"`
	MaxValuesPerFacet int        `json:"maxValuesPerFacet"`
	Page              int        `json:"page"`
	Query             string     `json:"query"`
}

type searchQuery struct {
	IndexName string       `json:"indexName"`
	Params    searchParams `json:"params"`
}

type searchHit struct {
	ID       Value `json:"id"`
	Retailer *struct {
		Name Value `json:"name"`
	} `json:"retailer"`
}

func (h searchHit) retailerName() string {
	if h.Retailer == nil {
		return ""
	}
	name, _ := h.Retailer.Name.Text()
	return name
}

type searchResponse struct {
	Results []struct {
		Hits []searchHit `json:"hits"`
	} `json:"results"`
}

type dataEnvelope struct {
	Data Value `json:"data"`
}
