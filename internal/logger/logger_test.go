package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cwrk-planet/live-quiz/internal/logger"
)

func decodeLine(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(out), "\n")[0])
	require.NoError(t, json.Unmarshal([]byte(line), &m), "expected JSON, got %s", out)
	return m
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	assert.Equal(t, logger.EnvDev, logger.DetectEnv())

	t.Setenv("APP_ENV", "staging")
	assert.Equal(t, logger.EnvStage, logger.DetectEnv())

	t.Setenv("APP_ENV", "Production")
	assert.Equal(t, logger.EnvProd, logger.DetectEnv())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warn": slog.LevelWarn, "error": slog.LevelError} {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := logger.ParseLevel("loud")
	assert.Error(t, err)
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Init(logger.Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})

	log.Debug("Hello world")

	out := buf.String()
	assert.NotContains(t, out, "{", "expected text output in dev/std")
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "service=demo")
	assert.Contains(t, out, "env=dev")
	assert.Same(t, log, logger.L())
}

func TestInit_StageStd_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{Service: "demo", Env: logger.EnvStage, Backend: logger.BackendStd, Output: &buf})

	slog.Info("booted", slog.String("k", "v"))

	m := decodeLine(t, buf.String())
	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "stage", m["env"])
	assert.Equal(t, "v", m["k"])
}

func TestInit_InstanceAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:    "live-quiz",
		InstanceID: "quiz-7",
		Env:        logger.EnvStage,
		Backend:    logger.BackendStd,
		Output:     &buf,
		Attrs:      []slog.Attr{slog.String("grpc_addr", ":9090")},
	})

	slog.Info("listening")

	m := decodeLine(t, buf.String())
	assert.Equal(t, "quiz-7", m["instance_id"])
	assert.Equal(t, ":9090", m["grpc_addr"])
	assert.NotContains(t, m, "version")
	assert.NotEmpty(t, m["started_at"])
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		Output:           &buf,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	})

	slog.Info("booted", slog.String("k", "v"))
	slog.Debug("filtered out")

	m := decodeLine(t, buf.String())
	assert.Equal(t, "booted", m["msg"])
	assert.Equal(t, "demo", m["service"])
	assert.Equal(t, "prod", m["env"])
	assert.Equal(t, "1.2.3", m["version"])
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "v", m["k"])
	assert.NotContains(t, buf.String(), "filtered out")
}

func TestInit_TraceIDsFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Output:           &buf,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	slog.InfoContext(ctx, "with trace")
	span.End()

	m := decodeLine(t, buf.String())
	assert.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
	assert.Equal(t, "with trace", m["msg"])
}

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	assert.Nil(t, logger.AttrsFromCtx(context.Background()))
}
