package tenancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormStoreResolvesThroughSQL(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	mock.ExpectQuery(`SELECT "tenant_id" FROM "tenant_settings" WHERE setting_name = \$1 AND setting_value = \$2`).
		WithArgs("business_slug", "acme-cleaning").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(7))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	id, err := NewResolver(store, store, nil, time.Minute).Resolve(context.Background(), "ACME Cleaning")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreFailurePropagates(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	mock.ExpectQuery(`SELECT "tenant_id" FROM "tenant_settings"`).
		WillReturnError(errors.New("connection reset"))

	_, err := NewResolver(store, store, nil, time.Minute).Resolve(context.Background(), "acme-cleaning")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
