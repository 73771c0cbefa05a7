package testhelper

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func NewTestPgxConn(t *testing.T) *pgx.Conn {
	t.Helper()

	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")

	if connString == "" {
		t.Skipf("skipping due to missing environment variable %v", "DATABASE_URL")
	}

	config, err := pgx.ParseConfig(connString)
	require.NoError(t, err)

	conn, err := pgx.ConnectConfig(ctx, config)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close(ctx)
	})

	return conn
}

// NewTestTx opens a transaction that is rolled back once the test finishes,
// after running the given schema statements inside it.
func NewTestTx(t *testing.T, schema ...string) pgx.Tx {
	t.Helper()

	ctx := context.Background()
	conn := NewTestPgxConn(t)

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = tx.Rollback(ctx)
	})

	for _, stmt := range schema {
		_, err := tx.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	return tx
}
