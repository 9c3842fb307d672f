package manager

import "github.com/rs/zerolog"

// LogPublisher writes slot events to a logger at debug level.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: l.With().Str("component", "slot_events").Logger()}
}

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Debug().Str("event", e.Name)
	if e.Key != "" {
		ev = ev.Str("key", e.Key)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("slot")
}
