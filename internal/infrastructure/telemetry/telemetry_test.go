package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	p, err := Setup(ctx, Config{Logs: true}, logger)
	require.NoError(t, err)
	assert.False(t, p.Tracing())
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.Meter())
	assert.False(t, p.ZapCore(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))
	p.EnableSpanProfiles()
	assert.False(t, p.spanProfiles)
	assert.NoError(t, p.Shutdown(ctx))

	prof, err := NewProfiler(ProfilerConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, prof.IsEnabled())
	assert.NoError(t, prof.Stop())
	assert.NoError(t, prof.Stop())
}

func TestProviders_ShutdownStopsRunningProviders(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	p := &Providers{
		traces:  sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		metrics: sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())),
	}
	assert.True(t, p.Tracing())

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "op")
	span.End()
	require.Len(t, recorder.Ended(), 1)

	require.NoError(t, p.Shutdown(context.Background()))

	_, late := p.TracerProvider().Tracer("test").Start(context.Background(), "after")
	late.End()
	assert.Len(t, recorder.Ended(), 1)
}

func TestNewProfiler_RequiresServerAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "inventory"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMinLevelCore(t *testing.T) {
	inner := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&nopWriter{}), zapcore.DebugLevel)
	core := &minLevelCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))
	assert.Nil(t, core.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil))
	assert.NotNil(t, core.Check(zapcore.Entry{Level: zapcore.ErrorLevel}, nil))

	with := core.With([]zapcore.Field{zap.String("k", "v")})
	assert.False(t, with.Enabled(zapcore.DebugLevel))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestRecordError_MarksSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "boom", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
}

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestRegisterDBTracing_RecordsQuerySpans(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "trace.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	cfg.SlowQueryThresh = time.Nanosecond
	require.NoError(t, RegisterDBTracing(db, cfg, tp, zap.NewNop()))

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRow{Name: "a"}).Error)

	assert.NotEmpty(t, recorder.Ended())
}

func TestSlowQueryCallback_TagsRecordingSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "gorm.Query")

	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))
	db := &gorm.DB{
		Statement: &gorm.Statement{Context: ctx, Table: "stocks", DB: &gorm.DB{RowsAffected: 2}},
		Config:    &gorm.Config{},
	}
	db.Error = errors.New("deadlock detected")
	slowQueryCallback(100 * time.Millisecond)(db)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	attrs := map[string]interface{}{}
	for _, a := range ended[0].Attributes() {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	assert.Equal(t, true, attrs["db.slow_query"])
	assert.Equal(t, "stocks", attrs["db.sql.table"])
	assert.Equal(t, int64(2), attrs["db.rows_affected"])
	assert.Equal(t, "deadlock detected", ended[0].Status().Description)
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "off.db")), &gorm.Config{})
	require.NoError(t, err)
	assert.NoError(t, RegisterDBTracing(db, DefaultDBTracingConfig(), sdktrace.NewTracerProvider(), zap.NewNop()))
}
