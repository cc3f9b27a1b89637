package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
	"github.com/alumnet/alumnet/internal/presence"
)

// Publisher fans an envelope out to a channel. *presence.Router implements it.
type Publisher interface {
	Publish(ch presence.Channel, env presence.Envelope) presence.PublishResult
}

// Report summarizes one Emit call.
type Report struct {
	Type      Type
	Channels  []presence.PublishResult
	Delivered int
}

// Dispatcher is the single entry point for outbound domain events.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewDispatcher creates a dispatcher publishing through p.
func NewDispatcher(log *slog.Logger, p Publisher, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		publisher: p,
		logger:    logger.OrDefault(log).With(slog.String("component", "dispatcher")),
		metrics:   m,
	}
}

// Emit validates ev, resolves its channels and publishes it to each. Invalid
// payloads are logged and rejected with ErrInvalidPayload; nothing is retried.
// Channels without members are not errors.
func (d *Dispatcher) Emit(ev Event) (Report, error) {
	if ev == nil {
		d.logger.Error("emit rejected: nil event")
		return Report{}, fmt.Errorf("%w: nil event", ErrInvalidPayload)
	}
	report := Report{Type: ev.Type()}

	if err := ev.Validate(); err != nil {
		return report, d.reject(ev.Type(), err)
	}
	channels, err := ev.Targets()
	if err != nil {
		return report, d.reject(ev.Type(), fmt.Errorf("%w: %s: target: %w", ErrInvalidPayload, ev.Type(), err))
	}
	if len(channels) == 0 {
		return report, d.reject(ev.Type(), fmt.Errorf("%w: %s: no target channel", ErrInvalidPayload, ev.Type()))
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return report, d.reject(ev.Type(), fmt.Errorf("%w: %s: encode: %w", ErrInvalidPayload, ev.Type(), err))
	}

	env := presence.Envelope{Type: string(ev.Type()), Payload: payload}
	for _, ch := range channels {
		res := d.publisher.Publish(ch, env)
		report.Channels = append(report.Channels, res)
		report.Delivered += res.Delivered
	}
	d.metrics.IncEvent(string(ev.Type()), "emitted")
	d.logger.Debug("event emitted",
		slog.String("type", string(ev.Type())),
		slog.Int("channels", len(channels)),
		slog.Int("delivered", report.Delivered),
	)
	return report, nil
}

func (d *Dispatcher) reject(t Type, err error) error {
	if !errors.Is(err, ErrInvalidPayload) {
		err = fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	d.metrics.IncEvent(string(t), "invalid")
	d.logger.Warn("emit rejected", slog.String("type", string(t)), slog.Any("error", err))
	return err
}
