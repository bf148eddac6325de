package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/repository/memory"
	"github.com/fastygo/agritrace/usecase/facility"
	"github.com/fastygo/agritrace/usecase/tracking"
)

var (
	producer  = domain.Actor{ID: "P1", Role: domain.RoleProducer}
	plantOp   = domain.Actor{ID: "PM1", Role: domain.RolePlantOperator}
	warehouse = domain.Actor{ID: "WM1", Role: domain.RoleWarehouseOperator}
	admin     = domain.Actor{ID: "A1", Role: domain.RoleAdministrator}
)

// mapCache is an in-process DashboardCache that round-trips through JSON
// and files entries by generation like the Redis implementation.
type mapCache struct {
	gen     repository.CacheGeneration
	entries map[string][]byte
	gets    int
	hits    int

	// beforeSet runs between a build and its write.
	beforeSet func()
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) slot(gen repository.CacheGeneration, key string) string {
	return fmt.Sprintf("%d:%s", gen, key)
}

func (c *mapCache) Get(_ context.Context, key string, dest interface{}) (repository.CacheGeneration, bool, error) {
	c.gets++
	raw, ok := c.entries[c.slot(c.gen, key)]
	if !ok {
		return c.gen, false, nil
	}
	c.hits++
	return c.gen, true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, gen repository.CacheGeneration, key string, value interface{}) error {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[c.slot(gen, key)] = raw
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.gen++
	return nil
}

type fixture struct {
	store  *memory.Store
	ledger *tracking.UseCase
	plant  *domain.Facility
	depot  *domain.Facility
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{store: store, ledger: tracking.New(store, domain.PermissivePolicy(), nil)}
	ctx := context.Background()

	f.plant = &domain.Facility{Name: "Plant", Kind: domain.KindProcessing, Location: "A", Capacity: 100}
	require.NoError(t, store.Facilities().Create(ctx, f.plant))
	f.depot = &domain.Facility{Name: "Depot", Kind: domain.KindStorage, Location: "B", Capacity: 100}
	require.NoError(t, store.Facilities().Create(ctx, f.depot))
	return f
}

func (f *fixture) lot(t *testing.T, producerID string, n int) *domain.Lot {
	t.Helper()
	lot := &domain.Lot{ContentHash: fmt.Sprintf("%s-%d", producerID, n), ProducerID: producerID, ProduceType: domain.ProduceCarrot, Quantity: 50}
	require.NoError(t, f.store.Lots().Create(context.Background(), lot))
	return lot
}

func (f *fixture) event(t *testing.T, lotID, facilityID string, status domain.Status) {
	t.Helper()
	_, err := f.ledger.AppendEvent(context.Background(), plantOp, tracking.AppendInput{
		LotID: lotID, FacilityID: facilityID, Status: string(status), Quantity: 1,
	})
	require.NoError(t, err)
}

func (f *fixture) useCase(cache *mapCache) *UseCase {
	facilities := facility.New(f.store, nil, nil)
	if cache == nil {
		return New(f.store, facilities, nil, DefaultLimits(), nil)
	}
	return New(f.store, facilities, cache, DefaultLimits(), nil)
}

func TestDashboard_Producer_OwnLotsAndTenRecentEvents(t *testing.T) {
	f := newFixture(t)
	mine := f.lot(t, "P1", 1)
	theirs := f.lot(t, "P2", 1)
	for i := 0; i < 12; i++ {
		f.event(t, mine.ID, f.plant.ID, domain.StatusProcessing)
	}
	f.event(t, theirs.ID, f.plant.ID, domain.StatusProcessing)

	board, err := f.useCase(nil).ForActor(context.Background(), producer)
	require.NoError(t, err)

	require.Len(t, board.Lots, 1)
	assert.Equal(t, mine.ID, board.Lots[0].ID)
	require.Len(t, board.RecentEvents, 10)
	for _, ev := range board.RecentEvents {
		assert.Equal(t, mine.ID, ev.LotID)
	}
	assert.Nil(t, board.Totals)
}

func TestDashboard_Operators_ScopedByFacilityKind(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, "P1", 1)
	for i := 0; i < 25; i++ {
		f.event(t, lot.ID, f.plant.ID, domain.StatusProcessing)
	}
	f.event(t, lot.ID, f.depot.ID, domain.StatusStored)

	uc := f.useCase(nil)

	plant, err := uc.ForActor(context.Background(), plantOp)
	require.NoError(t, err)
	require.Len(t, plant.Facilities, 1)
	assert.Equal(t, f.plant.ID, plant.Facilities[0].ID)
	assert.Len(t, plant.RecentEvents, 20)

	depot, err := uc.ForActor(context.Background(), warehouse)
	require.NoError(t, err)
	require.Len(t, depot.Facilities, 1)
	assert.Equal(t, f.depot.ID, depot.Facilities[0].ID)
	require.Len(t, depot.RecentEvents, 1)
	assert.Equal(t, domain.StatusStored, depot.RecentEvents[0].Status)
}

func TestDashboard_Administrator_Totals(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, "P1", 1)
	f.lot(t, "P2", 1)
	f.event(t, lot.ID, f.depot.ID, domain.StatusStored)

	board, err := f.useCase(nil).ForActor(context.Background(), admin)
	require.NoError(t, err)
	require.NotNil(t, board.Totals)
	assert.Equal(t, 2, board.Totals.Lots)
	assert.Equal(t, 2, board.Totals.Facilities)
	assert.Len(t, board.Facilities, 2)
}

func TestDashboard_RejectsAnonymousAndUnknownRoles(t *testing.T) {
	uc := newFixture(t).useCase(nil)

	_, err := uc.ForActor(context.Background(), domain.Actor{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.ForActor(context.Background(), domain.Actor{ID: "x", Role: "auditor"})
	assert.True(t, domain.IsForbidden(err))
}

func TestDashboard_ServedFromCacheUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	uc := f.useCase(cache)
	lot := f.lot(t, "P1", 1)
	ctx := context.Background()

	first, err := uc.ForActor(ctx, producer)
	require.NoError(t, err)
	assert.Empty(t, first.RecentEvents)

	f.event(t, lot.ID, f.plant.ID, domain.StatusProcessing)
	cached, err := uc.ForActor(ctx, producer)
	require.NoError(t, err)
	assert.Empty(t, cached.RecentEvents)
	assert.Equal(t, 1, cache.hits)

	require.NoError(t, cache.Invalidate(ctx))
	fresh, err := uc.ForActor(ctx, producer)
	require.NoError(t, err)
	assert.Len(t, fresh.RecentEvents, 1)
}

func TestDashboard_InvalidationDuringBuildIsNotCached(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	uc := f.useCase(cache)
	lot := f.lot(t, "P1", 1)
	ctx := context.Background()

	// The event lands and invalidates after the board was built but before
	// it is written back.
	cache.beforeSet = func() {
		f.event(t, lot.ID, f.plant.ID, domain.StatusProcessing)
		require.NoError(t, cache.Invalidate(ctx))
	}

	stale, err := uc.ForActor(ctx, producer)
	require.NoError(t, err)
	assert.Empty(t, stale.RecentEvents)

	fresh, err := uc.ForActor(ctx, producer)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)
	require.Len(t, fresh.RecentEvents, 1)
	assert.Equal(t, lot.ID, fresh.RecentEvents[0].LotID)

	again, err := uc.ForActor(ctx, producer)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Len(t, again.RecentEvents, 1)
}
