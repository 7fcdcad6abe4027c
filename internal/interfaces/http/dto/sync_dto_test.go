package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

func TestNewBatchDetailResponse(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	batch := stocksync.NewSyncBatch([]string{"s1", "s2"}, now, time.Hour)
	require.NoError(t, batch.StartFetching(now))
	require.NoError(t, batch.StartSyncing(uuid.New()))

	result := stocksync.NewSiteResult(batch.ID, "s1", "Main Shop", 1)
	result.Record(stocksync.ItemDetail{ErpSku: "A1", Outcome: stocksync.ItemOutcomeSyncedToInstock})

	resp := NewBatchDetailResponse(batch, []*stocksync.SiteResult{result})

	assert.Equal(t, batch.ID.String(), resp.ID)
	assert.Equal(t, "syncing", resp.Status)
	assert.Equal(t, "site", resp.StepKind)
	assert.Equal(t, 1, resp.CurrentStep)
	assert.Equal(t, []string{"s1", "s2"}, resp.SiteIDs)
	assert.Equal(t, now.Add(time.Hour), resp.ExpiresAt)
	require.Len(t, resp.Sites, 1)
	assert.Equal(t, "Main Shop", resp.Sites[0].SiteName)
	assert.Equal(t, 1, resp.Sites[0].SyncedToInstock)
	assert.Len(t, resp.Sites[0].Details, 1)
}

func TestNewBatchResponse_EmptySites(t *testing.T) {
	batch := stocksync.NewSyncBatch(nil, time.Now(), 0)
	resp := NewBatchResponse(batch)

	assert.NotNil(t, resp.SiteIDs)
	assert.Equal(t, "fetch", resp.StepKind)
	assert.Nil(t, resp.Stats)
}
