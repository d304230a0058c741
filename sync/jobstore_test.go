package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformerr"
)

func newJob(seller domain.SellerID, kind domain.JobKind) domain.SyncJob {
	now := time.Now()
	return domain.SyncJob{
		JobID: string(seller) + "-" + string(kind), SellerID: seller, Kind: kind,
		State: domain.JobQueued, CreatedAt: now, UpdatedAt: now,
	}
}

func TestMemoryJobStoreRejectsSecondNonTerminalJobOfSameKind(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	seller := domain.SellerID("seller-1")
	require.NoError(t, store.Create(ctx, newJob(seller, domain.JobKindFullHistoricalSync)))

	second := newJob(seller, domain.JobKindFullHistoricalSync)
	second.JobID = "seller-1-second"
	err := store.Create(ctx, second)

	require.Error(t, err)
	assert.True(t, platformerr.IsConflict(err))
}

func TestMemoryJobStoreAllowsDifferentKindsConcurrently(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()
	seller := domain.SellerID("seller-1")

	require.NoError(t, store.Create(ctx, newJob(seller, domain.JobKindFullHistoricalSync)))
	require.NoError(t, store.Create(ctx, newJob(seller, domain.JobKindReportDownload)))
}

func TestMemoryJobStoreAllowsNewJobAfterPriorTerminates(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()
	seller := domain.SellerID("seller-1")

	job := newJob(seller, domain.JobKindFullHistoricalSync)
	require.NoError(t, store.Create(ctx, job))

	job.State = domain.JobCompleted
	require.NoError(t, store.Update(ctx, job))

	second := newJob(seller, domain.JobKindFullHistoricalSync)
	second.JobID = "seller-1-second"
	require.NoError(t, store.Create(ctx, second))
}

func TestMemoryJobStoreCheckpointPersistsProgress(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()
	seller := domain.SellerID("seller-1")

	job := newJob(seller, domain.JobKindFullHistoricalSync)
	require.NoError(t, store.Create(ctx, job))

	require.NoError(t, store.Checkpoint(ctx, job.JobID, domain.Checkpoint{WindowIndex: 2, ReportIndex: 3}, domain.Progress{Current: 10, Total: 42}))

	got, err := store.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.Checkpoint{WindowIndex: 2, ReportIndex: 3}, got.Checkpoint)
	assert.Equal(t, domain.Progress{Current: 10, Total: 42}, got.Progress)
}

func TestMemoryJobStoreGetMissingIsNotFound(t *testing.T) {
	store := NewMemoryJobStore()
	_, err := store.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, platformerr.IsNotFound(err))
}
