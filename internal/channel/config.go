package channel

import (
	"fmt"

	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/redact"
)

// SinkFactory builds the sink of a configured channel.
type SinkFactory func(name string, cfg config.SinkConfig) (Sink, error)

// Load registers every configured channel. Redactor specs are validated
// here so a bad rule fails startup instead of a request.
func (m *Manager) Load(channels []config.ChannelConfig, registry *redact.Registry, newSink SinkFactory) error {
	for _, cc := range channels {
		redactors, err := registry.BuildAll(Specs(cc.Redactors))
		if err != nil {
			return fmt.Errorf("channel %s: %w", cc.Name, err)
		}
		s, err := newSink(cc.Name, cc.Sink)
		if err != nil {
			return fmt.Errorf("channel %s: %w", cc.Name, err)
		}
		if err := m.Register(cc.Name, s, redactors...); err != nil {
			return err
		}
	}
	return nil
}

// Specs converts configured redactors to registry specs.
func Specs(in []config.RedactorConfig) []redact.Spec {
	out := make([]redact.Spec, len(in))
	for i, r := range in {
		out[i] = redact.Spec{
			Type:        r.Type,
			Paths:       r.Paths,
			Replacement: r.Replacement,
			Strategy:    r.Strategy,
		}
	}
	return out
}
