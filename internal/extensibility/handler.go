package extensibility

import (
	"time"

	"github.com/comalice/tilewall/internal/primitives"
	"go.uber.org/zap"
)

// Handler consumes one message.
type Handler interface {
	Handle(msg primitives.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg primitives.Message)

// Handle calls f.
func (f HandlerFunc) Handle(msg primitives.Message) { f(msg) }

// Logging wraps inner with debug logs around every message.
func Logging(inner Handler, log *zap.Logger) Handler {
	return HandlerFunc(func(msg primitives.Message) {
		log.Debug("handling message", zap.String("type", string(msg.Type)), zap.String("id", msg.ID))
		start := time.Now()
		inner.Handle(msg)
		log.Debug("message handled", zap.String("type", string(msg.Type)), zap.Duration("took", time.Since(start)))
	})
}

// Recovering wraps inner so a panic is logged and the message skipped.
func Recovering(inner Handler, log *zap.Logger) Handler {
	return HandlerFunc(func(msg primitives.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("recovered panic handling message",
					zap.String("type", string(msg.Type)), zap.Any("panic", r))
			}
		}()
		inner.Handle(msg)
	})
}

// Filtered passes on only the messages every filter accepts.
func Filtered(inner Handler, filters ...Filter) Handler {
	if len(filters) == 0 {
		return inner
	}
	return HandlerFunc(func(msg primitives.Message) {
		for _, f := range filters {
			if !f.Match(msg) {
				return
			}
		}
		inner.Handle(msg)
	})
}
