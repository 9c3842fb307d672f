package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxUploadBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxUploadBytes(-1)
	if maxUploadBytes != 500<<20 {
		t.Fatalf("expected default 500MiB, got %d", maxUploadBytes)
	}
	SetMaxUploadBytes(1234)
	if maxUploadBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxUploadBytes)
	}
	SetMaxUploadBytes(0)
	if maxUploadBytes != 500<<20 {
		t.Fatalf("expected default 500MiB on zero, got %d", maxUploadBytes)
	}
}

func TestSetSubmitTimeout_NormalizesNegativeToZero(t *testing.T) {
	defer SetSubmitTimeout(0)
	SetSubmitTimeout(-5 * time.Second)
	if submitTimeout != 0 {
		t.Fatalf("expected 0, got %s", submitTimeout)
	}
	SetSubmitTimeout(3 * time.Second)
	if submitTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", submitTimeout)
	}
}

func TestSetSubmitRateLimit(t *testing.T) {
	defer SetSubmitRateLimit(0, 0)
	SetSubmitRateLimit(2, 0)
	if submitLimiter == nil || submitLimiter.Burst() != 1 {
		t.Fatalf("expected limiter with burst 1, got %v", submitLimiter)
	}
	SetSubmitRateLimit(0, 5)
	if submitLimiter != nil {
		t.Fatalf("expected limiter disabled")
	}
}
