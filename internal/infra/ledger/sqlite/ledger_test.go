package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaine/internal/ledger/core"
	"vaine/pkg/domain"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func entry(id, treatment, outcome string, at time.Time) core.Entry {
	return core.Entry{
		ID: id, Treatment: treatment, Outcome: outcome,
		ClusterCount: 4, Threshold: 0.05,
		ATESelected: 1.5, ATENone: math.NaN(), ATEAll: 0.5,
		Artifacts: []string{"exports/" + id + "/" + treatment + outcome + ".json"},
		CreatedAt: at,
	}
}

func TestLedgerAppendGetList(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(ctx, entry("b", "t", "y", base.Add(time.Minute))))
	require.NoError(t, l.Append(ctx, entry("a", "t", "y", base)))
	require.NoError(t, l.Append(ctx, entry("c", "t", "y2", base)))

	got, err := l.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Treatment)
	assert.Equal(t, 4, got.ClusterCount)
	assert.Equal(t, 1.5, got.ATESelected)
	assert.True(t, math.IsNaN(got.ATENone))
	assert.Equal(t, []string{"exports/a/ty.json"}, got.Artifacts)
	assert.True(t, base.Equal(got.CreatedAt))

	list, err := l.List(ctx, domain.NewPairKey("t", "y"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	all, err := l.List(ctx, domain.PairKey{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := l.List(ctx, domain.NewPairKey("x", "y"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLedgerListOrdersWithinSecond(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(ctx, entry("a", "t", "y", base.Add(100*time.Millisecond))))
	require.NoError(t, l.Append(ctx, entry("b", "t", "y", base)))
	require.NoError(t, l.Append(ctx, entry("c", "t", "y", base.Add(time.Nanosecond))))

	list, err := l.List(ctx, domain.NewPairKey("t", "y"))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
	assert.True(t, base.Add(time.Nanosecond).Equal(list[1].CreatedAt))

	var raw string
	require.NoError(t, l.DB().QueryRowContext(ctx, `SELECT created_at FROM exports WHERE id = ?`, "b").Scan(&raw))
	assert.Equal(t, "2024-05-01T12:00:00.000000000Z", raw)
}

func TestLedgerErrors(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)
	require.NoError(t, l.Append(ctx, entry("a", "t", "y", time.Now())))

	err := l.Append(ctx, entry("a", "t", "y", time.Now()))
	assert.True(t, errors.Is(err, core.ErrDuplicate), "got %v", err)

	_, err = l.Get(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Equal(t, core.DriverSQLite, l.Driver())
}

func TestLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, entry("a", "t", "y", time.Now())))
	require.NoError(t, l.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, path, reopened.Path())
	assert.Equal(t, "a", got.ID)
}
