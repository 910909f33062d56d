package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaine/internal/infra/ledger/postgres/testutil"
	"vaine/internal/ledger/core"
	"vaine/pkg/domain"
)

func openStub(t *testing.T) (*Ledger, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	})
	t.Cleanup(restore)
	l, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	assert.Equal(t, defaultDriver, gotDriver)
	assert.Equal(t, defaultDSN, gotDSN)
	return l, conn
}

func TestOpenCreatesTable(t *testing.T) {
	_, conn := openStub(t)
	require.NotEmpty(t, conn.Execs)
	assert.Contains(t, strings.ToUpper(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS EXPORTS")
}

func TestOpenFailures(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	_, err := Open(context.Background(), "postgres://example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")

	restoreErr := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restoreErr()
	_, err = Open(context.Background(), "postgres://example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgres")
}

func TestAppendGetList(t *testing.T) {
	ctx := context.Background()
	l, _ := openStub(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id, outcome string, at time.Time) core.Entry {
		return core.Entry{
			ID: id, Treatment: "t", Outcome: outcome, ClusterCount: 3, Threshold: 0.1,
			ATESelected: math.NaN(), ATENone: 2, ATEAll: 1,
			Artifacts: []string{"exports/" + id + "/t" + outcome + ".json"},
			CreatedAt: at,
		}
	}
	require.NoError(t, l.Append(ctx, mk("late", "y", base.Add(time.Hour))))
	require.NoError(t, l.Append(ctx, mk("early", "y", base)))
	require.NoError(t, l.Append(ctx, mk("other", "z", base)))

	err := l.Append(ctx, mk("early", "y", base))
	assert.True(t, errors.Is(err, core.ErrDuplicate), "got %v", err)

	got, err := l.Get(ctx, "early")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ClusterCount)
	assert.True(t, math.IsNaN(got.ATESelected))
	assert.Equal(t, 2.0, got.ATENone)
	assert.Equal(t, []string{"exports/early/ty.json"}, got.Artifacts)
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = l.Get(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	list, err := l.List(ctx, domain.NewPairKey("t", "y"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].ID)
	assert.Equal(t, "late", list[1].ID)

	all, err := l.List(ctx, domain.PairKey{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, core.DriverPostgres, l.Driver())
}

func TestQueryErrorsSurface(t *testing.T) {
	l, conn := openStub(t)
	conn.FailTables = map[string]bool{"exports": true}
	_, err := l.List(context.Background(), domain.PairKey{})
	require.Error(t, err)
	err = l.Append(context.Background(), core.Entry{ID: "x", CreatedAt: time.Now()})
	require.Error(t, err)
}
