package promoscore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	testCases := []struct {
		raw    string
		any    any
		text   string
		isText bool
	}{
		{raw: `null`, any: nil},
		{raw: ``, any: nil},
		{raw: `"lidl"`, any: "lidl", text: "lidl", isText: true},
		{raw: `10`, any: json.Number("10"), text: "10", isText: true},
		{raw: `52.2`, any: json.Number("52.2"), text: "52.2", isText: true},
		{raw: `true`, any: true, text: "true", isText: true},
		{raw: `{"a":1}`, any: `{"a":1}`, text: `{"a":1}`, isText: true},
	}

	for _, test := range testCases {
		v := Value(test.raw)
		require.Equal(t, test.any, v.Any(), test.raw)
		text, ok := v.Text()
		require.Equal(t, test.isText, ok, test.raw)
		require.Equal(t, test.text, text, test.raw)
	}
}

func TestValueElements(t *testing.T) {
	require.Nil(t, Value(`null`).Elements())
	require.Nil(t, Value(`{"lat":1}`).Elements())
	require.Len(t, Value(`[]`).Elements(), 0)

	elems := Value(`[52.2, 21.0]`).Elements()
	require.Len(t, elems, 2)
	require.Equal(t, json.Number("21.0"), elems[1].Any())
}

func TestOfferDecode(t *testing.T) {
	var offer Offer
	err := json.Unmarshal([]byte(`{"id":7,"retailer":{"id":null,"name":"lidl"}}`), &offer)
	require.NoError(t, err)

	require.Equal(t, json.Number("7"), offer.ID.Any())
	require.Nil(t, offer.Market.Any())
	require.Nil(t, offer.Article)
	_, ok := offer.RetailerID()
	require.False(t, ok)
}
