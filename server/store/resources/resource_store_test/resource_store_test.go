package resource_store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/gerror"
	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/store/resources"
	"github.com/siteguard/siteguard/server/store/store_test"
)

func connect(t *testing.T) (*resources.ResourceStore, context.Context) {
	ctx := context.Background()

	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return resources.NewStore(db, logFactory), ctx
}

func TestResourceStoreCRUD(t *testing.T) {
	resourceStore, ctx := connect(t)
	now := models.NewTime(time.Now())

	site := models.NewResourceRecord(now, models.NewResourceID(models.SiteResourceKind), "Store-Site", models.ResourceID{})
	require.NoError(t, resourceStore.Create(ctx, nil, site))

	read, err := resourceStore.Read(ctx, nil, site.ID)
	require.NoError(t, err)
	assert.Equal(t, site.ID, read.ID)
	assert.Equal(t, models.SiteResourceKind, read.Kind)
	assert.Equal(t, "Store-Site", read.Name)
	assert.False(t, read.ParentID.Valid())

	t.Run("DuplicateID", func(t *testing.T) {
		err := resourceStore.Create(ctx, nil, site)
		require.Error(t, err)
		assert.True(t, gerror.IsAlreadyExists(err))
	})

	t.Run("Update", func(t *testing.T) {
		read.Name = "Store-Site-Renamed"
		require.NoError(t, resourceStore.Update(ctx, nil, read))

		renamed, err := resourceStore.Read(ctx, nil, site.ID)
		require.NoError(t, err)
		assert.Equal(t, "Store-Site-Renamed", renamed.Name)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		require.NoError(t, resourceStore.Delete(ctx, nil, site.ID))
		_, err := resourceStore.Read(ctx, nil, site.ID)
		require.Error(t, err)
		assert.True(t, gerror.IsNotFound(err))
		require.NoError(t, resourceStore.Delete(ctx, nil, site.ID))
	})
}

func TestResourceStoreListings(t *testing.T) {
	resourceStore, ctx := connect(t)
	base := time.Now().Truncate(time.Second)

	site := models.NewResourceRecord(models.NewTime(base), models.NewResourceID(models.SiteResourceKind), "Listing-Site", models.ResourceID{})
	require.NoError(t, resourceStore.Create(ctx, nil, site))

	// Two floors created a second apart so the newest-first order is
	// deterministic.
	older := models.NewResourceRecord(models.NewTime(base.Add(time.Second)), models.NewResourceID(models.PlanResourceKind), "Listing-Floor-A", site.ID)
	require.NoError(t, resourceStore.Create(ctx, nil, older))
	newer := models.NewResourceRecord(models.NewTime(base.Add(2*time.Second)), models.NewResourceID(models.PlanResourceKind), "Listing-Floor-B", site.ID)
	require.NoError(t, resourceStore.Create(ctx, nil, newer))

	// A floor under another site must not show up as a child of this one.
	otherSite := models.NewResourceRecord(models.NewTime(base), models.NewResourceID(models.SiteResourceKind), "Listing-Other-Site", models.ResourceID{})
	require.NoError(t, resourceStore.Create(ctx, nil, otherSite))
	otherFloor := models.NewResourceRecord(models.NewTime(base.Add(time.Second)), models.NewResourceID(models.PlanResourceKind), "Listing-Other-Floor", otherSite.ID)
	require.NoError(t, resourceStore.Create(ctx, nil, otherFloor))

	t.Run("ListByParent", func(t *testing.T) {
		children, err := resourceStore.ListByParent(ctx, nil, site.ID, models.ListOptions{})
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, newer.ID, children[0].ID)
		assert.Equal(t, older.ID, children[1].ID)
	})

	t.Run("ListByParentOfLeaf", func(t *testing.T) {
		children, err := resourceStore.ListByParent(ctx, nil, newer.ID, models.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("ListByKind", func(t *testing.T) {
		floors, err := resourceStore.ListByKind(ctx, nil, models.PlanResourceKind, models.ListOptions{})
		require.NoError(t, err)
		ids := make([]models.ResourceID, 0, len(floors))
		for _, floor := range floors {
			assert.Equal(t, models.PlanResourceKind, floor.Kind)
			ids = append(ids, floor.ID)
		}
		assert.Contains(t, ids, older.ID)
		assert.Contains(t, ids, newer.ID)
		assert.Contains(t, ids, otherFloor.ID)
	})
}
