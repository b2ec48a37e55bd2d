package feed

import (
	"bytes"
	"encoding/json"

	"pairwatch/internal/engine"

	"go.uber.org/zap"
)

const tradeEvent = "trade"

// MakeMessageHandler returns a function that decodes trade stream messages and
// forwards them to sink. Anything that is not a trade event is ignored.
func MakeMessageHandler(logger *zap.Logger, sink engine.TickSink) func(msg []byte) {
	return func(msg []byte) {
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()

		var trade TradeMessage
		if err := dec.Decode(&trade); err != nil {
			logger.Debug("discarding unparseable payload", zap.Error(err))
			return
		}
		if trade.EventType != tradeEvent {
			return // subscription acks, other event types
		}
		if trade.TradeTime == nil || *trade.TradeTime <= 0 {
			logger.Debug("discarding trade without trade time", zap.String("symbol", trade.Symbol))
			return
		}

		// Validation happens at the sink; malformed fields are dropped there.
		sink.OnTick(trade.Symbol, *trade.TradeTime, trade.Price, trade.Quantity)
	}
}
