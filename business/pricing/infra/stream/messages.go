package stream

import (
	"encoding/json"
	"strings"

	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

const opSubscribe = "subscribe"

// SubscribeRequest asks the feed for ticker updates on symbols.
type SubscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// TickerEvent is a last-trade price pushed by the feed.
// Ts is unix seconds; zero means the feed did not stamp it.
type TickerEvent struct {
	Symbol string             `json:"symbol"`
	Price  fixedpoint.Decimal `json:"price"`
	Ts     int64              `json:"ts"`
}

// controlMessage covers acks and errors ({"op":"subscribe","status":"ok"} / {"error":"..."}).
type controlMessage struct {
	Op     string `json:"op"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// envelope is used to route a frame before decoding it fully.
type envelope struct {
	Op     string          `json:"op"`
	Error  string          `json:"error"`
	Symbol string          `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

func (e envelope) isTicker() bool {
	return e.Symbol != "" && len(e.Price) > 0
}

func (e envelope) isControl() bool {
	return e.Op != "" || e.Error != ""
}

// normalizeSymbol trims whitespace; symbols are case-sensitive (mAAPL != MAAPL).
func normalizeSymbol(s string) string {
	return strings.TrimSpace(s)
}
