package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformerr"
	"github.com/clarioclaims/engine/internal/platformlog"
)

// fakeTx records transaction lifecycle calls so the tests can assert Store's
// one-transaction contract without a live Postgres. Commit/Rollback follow
// pgx semantics: the first of either closes the transaction, and later calls
// return pgx.ErrTxClosed (which is how the deferred Rollback after a
// successful Commit stays a no-op).
type fakeTx struct {
	commits   int
	rollbacks int
	closed    bool
	commitErr error
	execSQL   []string
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	if t.commitErr != nil {
		return t.commitErr
	}
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.rollbacks++
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                                       { return nil }

var _ pgx.Tx = (*fakeTx)(nil)

func (t *fakeTx) syncStatusWrites() int {
	n := 0
	for _, sql := range t.execSQL {
		if strings.Contains(sql, "sync_status") {
			n++
		}
	}
	return n
}

// newFaultableStore builds a PostgresStore with batchSize 1 whose chunk
// upserts are scripted: chunk number failOn (1-based) fails, every other
// chunk reports its records inserted. failOn 0 never fails.
func newFaultableStore(failOn int) (*PostgresStore, *fakeTx, *int) {
	s := NewPostgresStore(nil, 1, platformlog.Noop())
	tx := &fakeTx{}
	begins := 0
	s.begin = func(ctx context.Context) (pgx.Tx, error) {
		begins++
		return tx, nil
	}
	chunks := 0
	s.upsert = func(ctx context.Context, _ pgx.Tx, _ domain.SellerID, _ domain.ReportType, chunk []domain.CanonicalRecord) (domain.StoreResult, error) {
		chunks++
		if chunks == failOn {
			return domain.StoreResult{}, errors.New("chunk write failed")
		}
		return domain.StoreResult{Inserted: len(chunk)}, nil
	}
	return s, tx, &begins
}

func testRecords(n int) []domain.CanonicalRecord {
	out := make([]domain.CanonicalRecord, n)
	for i := range out {
		out[i] = domain.CanonicalRecord{RecordDate: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)}
	}
	return out
}

func TestPostgresStoreCommitsOnceAcrossAllChunks(t *testing.T) {
	s, tx, begins := newFaultableStore(0)

	result, err := s.Store(context.Background(), "seller-1", domain.ReportOrders, testRecords(3), domain.Window{}, "full_historical_sync")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 1, *begins, "one transaction for the whole call")
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks, "deferred rollback after commit must be a no-op")
	assert.Equal(t, 1, tx.syncStatusWrites(), "sync_status written inside the same transaction")
}

func TestPostgresStoreRollsBackEarlierChunksWhenALaterChunkFails(t *testing.T) {
	s, tx, begins := newFaultableStore(2)

	result, err := s.Store(context.Background(), "seller-1", domain.ReportOrders, testRecords(3), domain.Window{}, "full_historical_sync")
	require.Error(t, err)
	assert.Equal(t, platformerr.Fatal, platformerr.KindOf(err))

	assert.Equal(t, domain.StoreResult{}, result, "no counts survive a failed call")
	assert.Equal(t, 1, *begins)
	assert.Equal(t, 0, tx.commits, "chunk 1 must not be committed when chunk 2 fails")
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, 0, tx.syncStatusWrites(), "sync_status never advances on a failed call")
}

func TestPostgresStoreSurfacesCommitFailureAsTransient(t *testing.T) {
	s, tx, _ := newFaultableStore(0)
	tx.commitErr = errors.New("connection lost during commit")

	_, err := s.Store(context.Background(), "seller-1", domain.ReportOrders, testRecords(2), domain.Window{}, "full_historical_sync")
	require.Error(t, err)
	assert.Equal(t, platformerr.Transient, platformerr.KindOf(err))
	assert.Equal(t, 0, tx.commits)
}
