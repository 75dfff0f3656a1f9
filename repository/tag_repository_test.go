package repository

import (
	"testing"

	"github.com/aisleworks/shelfsync/models"
	testingutil "github.com/aisleworks/shelfsync/testing"
	"github.com/aisleworks/shelfsync/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepoTest(t *testing.T) (*testingutil.TestDB, *testingutil.TestFixtures) {
	t.Helper()
	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() {
		if err := testDB.TeardownTestDB(); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})
	return testDB, testingutil.NewTestFixtures(testDB)
}

func TestTagRepository(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewTagRepository(testDB.DB)
	ctx := testingutil.CreateTestContext()

	tag, err := fixtures.CreateTestFleet()
	require.NoError(t, err)

	t.Run("ByID", func(t *testing.T) {
		found, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, tag.Serial, found.Serial)
	})

	t.Run("ByIDNotFound", func(t *testing.T) {
		found, err := repo.ByID(ctx, 99999)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("BySerial", func(t *testing.T) {
		found, err := repo.BySerial(ctx, tag.Serial)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, tag.ID, found.ID)

		missing, err := repo.BySerial(ctx, "NOTATAG0")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("ByIDWithRelations", func(t *testing.T) {
		found, err := repo.ByIDWithRelations(ctx, tag.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.NotNil(t, found.Gateway)
		require.NotNil(t, found.PairedProduct)
		require.NotNil(t, found.HardwareProfile)
		assert.Equal(t, 296, found.HardwareProfile.WidthPx)
	})

	t.Run("UpdateSyncState", func(t *testing.T) {
		require.NoError(t, repo.UpdateSyncState(ctx, tag.ID, models.SyncStateProcessing))
		found, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStateProcessing, found.SyncState)
	})

	t.Run("UpdateImage", func(t *testing.T) {
		image := []byte{0x42, 0x4D, 0x01, 0x02}
		require.NoError(t, repo.UpdateImage(ctx, tag.ID, image, "bmp", utils.UTCNow()))

		found, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		assert.Equal(t, image, found.Image)
		assert.Equal(t, "bmp", found.ImageFormat)
		assert.NotNil(t, found.LastImageGenSuccess)
	})

	t.Run("UpdateDispatch", func(t *testing.T) {
		taskID := uuid.New().String()
		require.NoError(t, repo.UpdateDispatch(ctx, tag.ID, models.SyncStatePushed, taskID, 42))

		found, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncStatePushed, found.SyncState)
		require.NotNil(t, found.LastImageTaskID)
		assert.Equal(t, taskID, *found.LastImageTaskID)
		require.NotNil(t, found.LastImageToken)
		assert.Equal(t, 42, *found.LastImageToken)
	})

	t.Run("UpdateTelemetryDoesNotClobberSyncFields", func(t *testing.T) {
		require.NoError(t, repo.UpdateTelemetry(ctx, tag.Serial, 63, utils.UTCNow()))

		found, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		assert.Equal(t, 63, found.BatteryLevel)
		assert.NotNil(t, found.LastSeen)
		// Telemetry is field-scoped: the dispatch bookkeeping stays intact
		assert.Equal(t, models.SyncStatePushed, found.SyncState)
		require.NotNil(t, found.LastImageToken)
		assert.Equal(t, 42, *found.LastImageToken)
	})

	t.Run("ListSyncableIDs", func(t *testing.T) {
		store, err := fixtures.CreateTestStore()
		require.NoError(t, err)
		gateway, err := fixtures.CreateTestGateway(store.ID)
		require.NoError(t, err)
		unpaired, err := fixtures.CreateTestTag(gateway.ID, nil, nil)
		require.NoError(t, err)

		ids, err := repo.ListSyncableIDs(ctx, []uint{tag.ID, unpaired.ID, 99999})
		require.NoError(t, err)
		assert.Equal(t, []uint{tag.ID}, ids)
	})
}

func TestTagRepositoryPairingStoreGuard(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewTagRepository(testDB.DB)
	ctx := testingutil.CreateTestContext()

	tag, err := fixtures.CreateTestFleet()
	require.NoError(t, err)

	otherStore, err := fixtures.CreateTestStore()
	require.NoError(t, err)
	foreign, err := fixtures.CreateTestProduct(otherStore.ID, 3.99, false)
	require.NoError(t, err)

	t.Run("UpdateRejectsCrossStorePairing", func(t *testing.T) {
		fresh, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		fresh.PairedProductID = &foreign.ID

		err = repo.Update(ctx, fresh)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrPairingStoreMismatch)

		// The stored pairing is untouched
		stored, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.PairedProductID)
		assert.NotEqual(t, foreign.ID, *stored.PairedProductID)
	})

	t.Run("SaveRejectsCrossStorePairing", func(t *testing.T) {
		crossStore := &models.Tag{
			Serial:          "TAGPAIR00001",
			GatewayID:       tag.GatewayID,
			PairedProductID: &foreign.ID,
		}

		err := repo.Save(ctx, crossStore)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrPairingStoreMismatch)
	})

	t.Run("SameStorePairingAccepted", func(t *testing.T) {
		withRelations, err := repo.ByIDWithRelations(ctx, tag.ID)
		require.NoError(t, err)
		require.NotNil(t, withRelations.Gateway)

		local, err := fixtures.CreateTestProduct(withRelations.Gateway.StoreID, 4.25, false)
		require.NoError(t, err)

		fresh, err := repo.ByID(ctx, tag.ID)
		require.NoError(t, err)
		fresh.PairedProductID = &local.ID
		require.NoError(t, repo.Update(ctx, fresh))
	})
}

func TestGatewayRepositoryMarkSeen(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewGatewayRepository(testDB.DB)
	ctx := testingutil.CreateTestContext()

	store, err := fixtures.CreateTestStore()
	require.NoError(t, err)
	gateway, err := fixtures.CreateTestGateway(store.ID)
	require.NoError(t, err)

	// Force offline first
	require.NoError(t, testDB.DB.Model(&models.Gateway{}).Where("id = ?", gateway.ID).Update("is_online", false).Error)

	require.NoError(t, repo.MarkSeen(ctx, gateway.GatewayMAC, utils.UTCNow()))

	found, err := repo.ByMAC(ctx, gateway.GatewayMAC)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, utils.IsTrue(found.IsOnline))
	assert.NotNil(t, found.LastSeen)
}

func TestPipelineTaskRepositoryGroupCounts(t *testing.T) {
	testDB, fixtures := setupRepoTest(t)
	repo := NewPipelineTaskRepository(testDB.DB)
	ctx := testingutil.CreateTestContext()

	tag, err := fixtures.CreateTestFleet()
	require.NoError(t, err)

	groupUUID := uuid.New()
	statuses := []models.PipelineTaskStatus{
		models.PipelineTaskStatusSuccess,
		models.PipelineTaskStatusSuccess,
		models.PipelineTaskStatusFailure,
		models.PipelineTaskStatusSkipped,
		models.PipelineTaskStatusPending,
	}
	for _, status := range statuses {
		task := &models.PipelineTask{
			UUID:      uuid.New(),
			TagID:     tag.ID,
			Stage:     models.PipelineStageRender,
			Status:    status,
			GroupUUID: utils.ToPtr(groupUUID),
		}
		require.NoError(t, repo.Save(ctx, task))
	}

	// A dispatch task without a group must not be counted
	require.NoError(t, repo.Save(ctx, &models.PipelineTask{
		UUID:   uuid.New(),
		TagID:  tag.ID,
		Stage:  models.PipelineStageDispatch,
		Status: models.PipelineTaskStatusSuccess,
	}))

	counts, err := repo.CountByGroupAndStatus(ctx, groupUUID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.PipelineTaskStatusSuccess])
	assert.Equal(t, int64(1), counts[models.PipelineTaskStatusFailure])
	assert.Equal(t, int64(1), counts[models.PipelineTaskStatusSkipped])
	assert.Equal(t, int64(1), counts[models.PipelineTaskStatusPending])

	t.Run("MarkStartedAndEnded", func(t *testing.T) {
		task := &models.PipelineTask{
			UUID:   uuid.New(),
			TagID:  tag.ID,
			Stage:  models.PipelineStageRender,
			Status: models.PipelineTaskStatusPending,
		}
		require.NoError(t, repo.Save(ctx, task))

		require.NoError(t, repo.MarkStarted(ctx, task.UUID, utils.UTCNow()))
		found, err := repo.ByUUID(ctx, task.UUID)
		require.NoError(t, err)
		assert.Equal(t, models.PipelineTaskStatusStarted, found.Status)
		assert.NotNil(t, found.StartedAt)

		require.NoError(t, repo.MarkEnded(ctx, task.UUID, models.PipelineTaskStatusFailure, utils.ToPtr("render exploded"), utils.UTCNow()))
		found, err = repo.ByUUID(ctx, task.UUID)
		require.NoError(t, err)
		assert.Equal(t, models.PipelineTaskStatusFailure, found.Status)
		require.NotNil(t, found.Error)
		assert.Equal(t, "render exploded", *found.Error)
		assert.NotNil(t, found.EndedAt)
	})
}
