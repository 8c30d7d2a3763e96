package source

import (
	"context"
	"testing"
	"time"

	"cheshire/internal/config"
	"cheshire/internal/plugin"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresAdapt(t *testing.T) {
	factory := PostgresFactory{}

	cfg, err := factory.Adapt("db-a", config.SourceSpec{
		Factory: "postgres",
		Connection: map[string]interface{}{
			"dsn": "postgres://localhost/app?sslmode=disable",
		},
		Pool: map[string]interface{}{
			"maxOpen":     25,
			"maxIdle":     5,
			"maxLifetime": "10m",
		},
	})
	require.NoError(t, err)

	pc := cfg.(PostgresConfig)
	assert.Equal(t, "db-a", pc.Name)
	assert.Equal(t, 25, pc.MaxOpenConns)
	assert.Equal(t, 5, pc.MaxIdleConns)
	assert.Equal(t, 10*time.Minute, pc.ConnMaxLifetime)
	assert.Equal(t, "postgres", cfg.ConfigType())
}

func TestPostgresValidate(t *testing.T) {
	factory := PostgresFactory{}

	err := factory.Validate(PostgresConfig{Name: "db-a", MaxOpenConns: 10})
	assert.Error(t, err, "empty DSN must be rejected")

	err = factory.Validate(PostgresConfig{Name: "db-a", DSN: "x", MaxOpenConns: 0})
	assert.Error(t, err, "non-positive pool size must be rejected")

	err = factory.Validate(PostgresConfig{Name: "db-a", DSN: "x", MaxOpenConns: 1})
	assert.NoError(t, err)
}

func TestPostgresExecute(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	src := &postgresSource{
		name: "db-a",
		cfg:  PostgresConfig{Name: "db-a"},
		db:   sqlx.NewDb(mockDB, "sqlmock"),
	}

	mock.ExpectQuery("SELECT id, title FROM posts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(1, "hello").
			AddRow(2, "world"))

	res, err := src.Execute(context.Background(), plugin.Query{
		Statement: "SELECT id, title FROM posts",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "hello", res.Rows[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecuteClosed(t *testing.T) {
	src := &postgresSource{name: "db-a", cfg: PostgresConfig{Name: "db-a"}}

	_, err := src.Execute(context.Background(), plugin.Query{Statement: "SELECT 1"})
	assert.Error(t, err)
}
