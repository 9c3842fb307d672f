package httpapi

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncrementBackpressure_Reasons(t *testing.T) {
	for _, reason := range []string{"queue", "rate"} {
		before := testutil.ToFloat64(backpressureTotal.WithLabelValues(reason))
		IncrementBackpressure(reason)
		if got := testutil.ToFloat64(backpressureTotal.WithLabelValues(reason)); got < before+1 {
			t.Fatalf("reason %q: expected >= %v, got %v", reason, before+1, got)
		}
	}

	// Empty reason is recorded as "unspecified".
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")); after < before+1 {
		t.Fatalf("unspecified reason: before=%v after=%v", before, after)
	}
}

func TestRateLimitedSubmitCountsBackpressure(t *testing.T) {
	defer SetSubmitRateLimit(0, 0)
	SetSubmitRateLimit(0.001, 1)
	f := newFixture(t)
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("rate"))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rr := f.post(t, "/api/separate", "clip.wav", map[string]string{"description": "dog"})
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("rate")); got < before+1 {
		t.Fatalf("rate backpressure not counted: before=%v got=%v", before, got)
	}
}
