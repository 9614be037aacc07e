package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

// newTestDB connects to SSHRECORD_TEST_POSTGRES_DSN or skips the test
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SSHRECORD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SSHRECORD_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	database, err := New(ctx, Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func uniqueTable(t *testing.T) string {
	t.Helper()
	table := fmt.Sprintf("SSH-Records-%s", uuid.NewString()[:8])
	return table
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"Athenz-ZTS-Table"`, ident("Athenz-ZTS-Table"))
	assert.Equal(t, `"a""b"`, ident(`a"b`))
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), Config{DSN: "postgres://localhost:99999/db"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse postgres dsn"), err.Error())
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := New(ctx, Config{DSN: "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"})
	if err == nil {
		t.Skip("unexpectedly connected to postgres on port 1")
	}
	assert.Contains(t, err.Error(), "postgres")
}

func TestDB_RecordLifecycle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	table := uniqueTable(t)
	t.Cleanup(func() {
		database.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+ident(table)) //nolint:errcheck // test cleanup
	})

	assert.ErrorIs(t, database.DescribeTable(ctx, table), recordstore.ErrTableNotFound)
	require.NoError(t, database.CreateTable(ctx, table))
	require.NoError(t, database.CreateTable(ctx, table))
	require.NoError(t, database.DescribeTable(ctx, table))

	now := time.Now().UTC().Truncate(time.Microsecond)
	expired := &models.SSHRecord{
		ID: uuid.NewString(), Principal: "user.joe", PrincipalDomain: "user", PrincipalName: "joe",
		SourceIP: "10.11.12.13", TargetService: "athenz.api", CertificateID: "1",
		IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	live := &models.SSHRecord{
		ID: uuid.NewString(), Principal: "user.joe", PrincipalDomain: "user", PrincipalName: "joe",
		Issuer: "sys.auth.zms", SourceIP: "10.11.12.13", TargetService: "athenz.api", CertificateID: "2",
		IssuedAt: now,
	}
	require.NoError(t, database.PutRecord(ctx, table, expired))
	require.NoError(t, database.PutRecord(ctx, table, live))

	records, err := database.ListRecords(ctx, table, models.RecordFilter{Principal: "user.joe"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[0].CertificateID)
	assert.Equal(t, "sys.auth.zms", records[0].Issuer)
	assert.True(t, records[0].ExpiresAt.IsZero())

	purged, err := database.PurgeExpired(ctx, table, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	require.NoError(t, database.ClearIdleConnections())
	assert.NoError(t, database.DescribeTable(ctx, table))
}

func TestRecordStoreOverPostgres(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	store := recordstore.New(database, uniqueTable(t))
	_, err := store.GetConnection(ctx)
	assert.ErrorIs(t, err, recordstore.ErrConfiguration)
}
