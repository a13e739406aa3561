package infrastructure

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewTelemetry_Disabled(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), &TelemetryConfig{ServiceName: "contest-radar-test"}, zap.NewNop())
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	if tel.Tracer == nil || tel.TracerProvider != nil {
		t.Fatalf("want global noop tracer only, got %+v", tel)
	}

	metrics, err := tel.CreateMetrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	metrics.CacheLookups.Add(context.Background(), 1)
	metrics.TickDuration.Record(context.Background(), 0.5)

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	if m == nil || m.RemindersSent == nil || m.SourceFetchDuration == nil {
		t.Fatalf("incomplete noop metrics %+v", m)
	}
}

func TestNewRedisClient_Disabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), &RedisConfig{}, zap.NewNop())
	if client != nil || err != nil {
		t.Fatalf("want nil client without address, got %v / %v", client, err)
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	for _, env := range []string{"development", "production"} {
		logger, err := NewLogger(env)
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) || !logger.Core().Enabled(zapcore.WarnLevel) {
			t.Fatalf("%s: LOG_LEVEL not applied", env)
		}
	}
}
