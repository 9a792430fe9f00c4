package observability

import (
	"context"
	"testing"
)

func TestInitTracingDisabledReturnsNil(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	if stop := InitTracing(context.Background(), nil, "identityhub-test"); stop != nil {
		t.Fatalf("expected nil shutdown when tracing is disabled, got %T", stop)
	}
}

func TestSampleRatioClamps(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_RATIO", "2.5")
	if got := sampleRatio(); got != 1 {
		t.Fatalf("ratio above 1 should clamp to 1, got %v", got)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	if got := sampleRatio(); got != 0 {
		t.Fatalf("negative ratio should clamp to 0, got %v", got)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "not-a-number")
	if got := sampleRatio(); got != 0.1 {
		t.Fatalf("unparseable ratio should fall back to default, got %v", got)
	}
}
