package domainmodel

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Order is a request to trade a quantity of a symbol at a reference
// price, annotated with a broker-assigned id once confirmed.
type Order struct {
	BrokerID       int       `json:"broker_id,omitempty"`
	TradeDate      CivilDate `json:"trade_date"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Quantity       int64     `json:"quantity"`
	ReferencePrice float64   `json:"reference_price,omitempty"`
	HasRefPrice    bool      `json:"has_reference_price,omitempty"`
}

// WithBrokerID returns a copy of the order annotated with a broker id.
func (o Order) WithBrokerID(id int) Order {
	o.BrokerID = id
	return o
}

// Valid reports whether the order satisfies quantity > 0.
func (o Order) Valid() bool {
	return o.Quantity > 0
}
