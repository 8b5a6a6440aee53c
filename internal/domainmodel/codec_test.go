package domainmodel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQuoteFrame(t *testing.T) {
	raw := []byte(`{"symbol":"SPY","bid":99.5,"ask":100.1,"biddate":1719792000000,"askdate":1719792000000}`)

	q, err := DecodeQuoteFrame(raw)
	require.NoError(t, err)

	assert.Equal(t, "SPY", q.Symbol)
	assert.Equal(t, 99.5, q.Bid)
	assert.Equal(t, 100.1, q.Ask)
	assert.True(t, q.BidDate.Equal(time.UnixMilli(1719792000000)))
}

func TestDecodeQuoteFrame_InvalidJSON(t *testing.T) {
	_, err := DecodeQuoteFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestCivilDateJSONRoundTrip(t *testing.T) {
	d := CivilDate{Year: 2024, Month: 6, Day: 30}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-30"`, string(data))

	var got CivilDate
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, d, got)
}

func TestDecodeDay(t *testing.T) {
	raw := json.RawMessage(`{"date":"2024-06-28","open":10,"high":12,"low":9,"close":11,"volume":1000}`)

	day, err := DecodeDay("SPY", raw)
	require.NoError(t, err)

	assert.Equal(t, "SPY", day.Symbol)
	assert.Equal(t, CivilDate{Year: 2024, Month: 6, Day: 28}, day.Date)
	assert.Equal(t, 11.0, day.Close)
	assert.True(t, day.Valid())
}
