package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type rateRow struct {
	ID       uint   `gorm:"primaryKey"`
	Currency string `gorm:"size:3"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&rateRow{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop()).Register(db))
	assert.Nil(t, db.Callback().Query().Get("tpa_timing:after_query"))
}

func TestDBTracingPlugin_Register(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, plugin.Register(db))

	assert.NotNil(t, db.Callback().Query().Get("tpa_timing:after_query"))
	require.NoError(t, db.Create(&rateRow{Currency: "USD"}).Error)
}

func TestDBTracingPlugin_Annotate(t *testing.T) {
	db := setupTestDB(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "store")
	tx := db.WithContext(ctx)
	startTimer(tx)
	time.Sleep(time.Millisecond)
	tx.Statement.RowsAffected = 2
	tx.Statement.Table = "exchange_rates"
	plugin.annotate(tx)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]bool{}
	for _, a := range spans[0].Attributes() {
		attrs[string(a.Key)] = true
	}
	assert.True(t, attrs["db.rows_affected"])
	assert.True(t, attrs["db.sql.table"])
	assert.True(t, attrs["db.slow_query"])
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "slow_query_warning", spans[0].Events()[0].Name)
}
