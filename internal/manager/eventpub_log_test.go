package manager

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogPublisher_WritesDebugLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))
	p.Publish(Event{Name: EventSpawnReady, Key: "facebook/sam-audio-small|cuda|bf16", Fields: map[string]any{"port": 18080}})
	out := buf.String()
	for _, want := range []string{`"event":"spawn_ready"`, `"port":18080`, `"level":"debug"`, `"component":"slot_events"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}

	buf.Reset()
	p = NewLogPublisher(zerolog.New(&buf).Level(zerolog.InfoLevel))
	p.Publish(Event{Name: EventEvict})
	if buf.Len() != 0 {
		t.Fatalf("debug event written at info level: %q", buf.String())
	}
}
