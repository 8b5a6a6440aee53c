package domainmodel

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireQuote mirrors the broker's streaming quote frame: symbol, bid,
// ask, and millisecond-epoch timestamps for each side.
type wireQuote struct {
	Symbol  string  `json:"symbol"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	BidDate int64   `json:"biddate"`
	AskDate int64   `json:"askdate"`
}

// DecodeQuoteFrame parses one streaming quote frame as emitted by the
// broker's WebSocket session.
func DecodeQuoteFrame(raw []byte) (Quote, error) {
	var w wireQuote
	if err := json.Unmarshal(raw, &w); err != nil {
		return Quote{}, fmt.Errorf("decoding quote frame: %w", err)
	}
	return Quote{
		Symbol:  w.Symbol,
		Bid:     w.Bid,
		Ask:     w.Ask,
		BidDate: time.UnixMilli(w.BidDate),
		AskDate: time.UnixMilli(w.AskDate),
	}, nil
}

// MarshalJSON renders the civil date as a quoted YYYY-MM-DD string.
func (d CivilDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses a quoted YYYY-MM-DD string. "0000-00-00", which
// MarshalJSON renders for the zero CivilDate, decodes back to the zero
// value.
func (d *CivilDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshaling civil date: %w", err)
	}
	if s == (CivilDate{}).String() {
		*d = CivilDate{}
		return nil
	}
	parsed, err := ParseCivilDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// wireDay mirrors the broker's historical-data day entry.
type wireDay struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// DecodeDay parses one entry from the broker's history response for a
// given symbol (the symbol is not carried on the wire entry itself).
func DecodeDay(symbol string, raw json.RawMessage) (Day, error) {
	var w wireDay
	if err := json.Unmarshal(raw, &w); err != nil {
		return Day{}, fmt.Errorf("decoding day bar: %w", err)
	}
	date, err := ParseCivilDate(w.Date)
	if err != nil {
		return Day{}, err
	}
	return Day{
		Symbol: symbol,
		Date:   date,
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: w.Volume,
	}, nil
}
