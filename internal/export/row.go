package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"promoscrape/internal/promoscore"
)

const (
	ColRetailerName = "retailer_name"
	ColRetailerID   = "retailer_id"
	ColOfferID      = "offer_id"
	ColArticleName  = "article_name"
	ColMarket       = "market"
	ColDiscount     = "discount"
	ColCity         = "city"
	ColStreet       = "street"
	ColZipCode      = "zipCode"
	ColLat          = "lat"
	ColLng          = "lng"
	ColGmapUrl      = "gmapUrl"
)

// Columns is the column order of every row produced by Flatten.
var Columns = []string{
	ColRetailerName, ColRetailerID, ColOfferID, ColArticleName,
	ColMarket, ColDiscount,
	ColCity, ColStreet, ColZipCode, ColLat, ColLng, ColGmapUrl,
}

// Field is a single cell of a Row, a nil Value is null.
type Field struct {
	Key   string
	Value any
}

// Row is a flat record with ordered keys.
type Row []Field

func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value of the first field named key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as an object with keys in row order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Cell renders a field value for text based outputs, null is the empty string.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Flatten joins an offer and the nearest store of its retailer into one row.
// It never fails, anything missing upstream is null in the row.
func Flatten(offer *promoscore.Offer, store *promoscore.Store) Row {
	if offer == nil {
		offer = &promoscore.Offer{}
	}
	if store == nil {
		store = &promoscore.Store{}
	}

	var retailerName, retailerId, articleName any
	if offer.Retailer != nil {
		retailerName = offer.Retailer.Name.Any()
		retailerId = offer.Retailer.ID.Any()
	}
	if offer.Article != nil {
		articleName = offer.Article.Name.Any()
	}

	var lat, lng any
	location := store.Location.Elements()
	if len(location) >= 2 {
		lat = location[0].Any()
		lng = location[1].Any()
	}

	return Row{
		{ColRetailerName, retailerName},
		{ColRetailerID, retailerId},
		{ColOfferID, offer.ID.Any()},
		{ColArticleName, articleName},
		{ColMarket, offer.Market.Any()},
		{ColDiscount, offer.Discount.Any()},
		{ColCity, store.City.Any()},
		{ColStreet, store.Street.Any()},
		{ColZipCode, store.ZipCode.Any()},
		{ColLat, lat},
		{ColLng, lng},
		{ColGmapUrl, store.GmapUrl.Any()},
	}
}
