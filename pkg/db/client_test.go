package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/db/dbtest"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/logger"
)

func newMockClient(t *testing.T, monitorPings bool) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return NewFromGorm(conn), mock
}

func TestWithTxCommits(t *testing.T) {
	client := NewFromGorm(dbtest.Open(t))
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models.Store{Name: "کتاب‌سرا", Domain: "ketab.example.ir", IsActive: true}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&models.Store{}).Where("domain = ?", "ketab.example.ir").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client := NewFromGorm(dbtest.Open(t))
	ctx := context.Background()
	sentinel := errors.New("abort checkout")

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Store{Name: "گل‌فروشی", Domain: "gol.example.ir"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, client.DB().Model(&models.Store{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	client := NewFromGorm(dbtest.Open(t))

	require.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&models.Store{Name: "عطاری", Domain: "attar.example.ir"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	})

	var count int64
	require.NoError(t, client.DB().Model(&models.Store{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWithTxRollsBackOnUniqueViolation(t *testing.T) {
	client, mock := newMockClient(t, false)
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_stores_domain"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "stores"`).WillReturnError(pgErr)
	mock.ExpectRollback()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec(`UPDATE "stores" SET domain = ? WHERE id = ?`, "dup.example.ir", 1).Error
	})
	require.True(t, IsUniqueViolation(err, "ux_stores_domain"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingReportsUnreachableDatabase(t *testing.T) {
	client, mock := newMockClient(t, true)

	mock.ExpectPing()
	require.NoError(t, client.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	require.Error(t, client.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})
	ql := NewQueryLogger(logg, time.Millisecond)

	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return `SELECT * FROM "orders"`, 3
	}, nil)
	require.Contains(t, buf.String(), `"message":"db.query_slow"`)
	require.Contains(t, buf.String(), `"rows":3`)

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "orders"`, 0
	}, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String())
}
