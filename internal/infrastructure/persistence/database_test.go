package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := open(
		postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}),
		&config.DatabaseConfig{MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetime: 30, ConnMaxIdleTime: 5},
		&gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true},
	)
	require.NoError(t, err)
	return db, mock
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing()
		require.NoError(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("down", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		assert.ErrorContains(t, db.Ping(context.Background()), "connection refused")
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _ := newMockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 8, stats.MaxOpenConnections)
	assert.Zero(t, stats.InUse)
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectClose()
	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
