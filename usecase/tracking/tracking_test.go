package tracking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/repository/memory"
)

var (
	producer = domain.Actor{ID: "P1", Role: domain.RoleProducer}
	operator = domain.Actor{ID: "OP1", Role: domain.RolePlantOperator}
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.TrackingEvent
	err    error
}

func (n *recordingNotifier) NotifyAppended(_ context.Context, event domain.TrackingEvent, _ float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	appended int
	rejected map[domain.ErrorCode]int
	drift    map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rejected: map[domain.ErrorCode]int{}, drift: map[string]float64{}}
}

func (m *recordingMetrics) EventAppended(domain.TrackingEvent, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended++
}

func (m *recordingMetrics) AppendRejected(code domain.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[code]++
}

func (m *recordingMetrics) StockDrift(facilityID string, drift float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drift[facilityID] = drift
}

type fixture struct {
	store    *memory.Store
	uc       *UseCase
	notifier *recordingNotifier
	metrics  *recordingMetrics
	plant    *domain.Facility
	depot    *domain.Facility
}

func newFixture(t *testing.T, policy domain.LedgerPolicy) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		notifier: &recordingNotifier{},
		metrics:  newRecordingMetrics(),
	}
	f.uc = New(store, policy, nil,
		WithNotifier(f.notifier),
		WithMetrics(f.metrics),
		WithClock(newTickClock().Now),
	)

	f.plant = &domain.Facility{Name: "Plant", Kind: domain.KindProcessing, Location: "North", Capacity: 1000}
	require.NoError(t, store.Facilities().Create(context.Background(), f.plant))
	f.depot = &domain.Facility{Name: "Warehouse", Kind: domain.KindStorage, Location: "South", Capacity: 2000}
	require.NoError(t, store.Facilities().Create(context.Background(), f.depot))
	return f
}

func (f *fixture) lot(t *testing.T, quantity float64) *domain.Lot {
	t.Helper()
	lot := &domain.Lot{
		ContentHash:  fmt.Sprintf("%064d", rand.Int63()),
		ProducerID:   producer.ID,
		ProduceType:  domain.ProduceTomato,
		Quantity:     quantity,
		QualityGrade: domain.GradeA,
	}
	require.NoError(t, f.store.Lots().Create(context.Background(), lot))
	return lot
}

func (f *fixture) append(t *testing.T, lotID, facilityID string, status domain.Status, qty float64) *domain.TrackingEvent {
	t.Helper()
	ev, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: lotID, FacilityID: facilityID, Status: string(status), Quantity: qty,
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) stock(t *testing.T, facilityID string) float64 {
	t.Helper()
	got, err := f.store.Facilities().GetByID(context.Background(), facilityID)
	require.NoError(t, err)
	return got.CurrentStock
}

func TestTracking_AppendEvent_PlantThenWarehouse(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 500)

	f.append(t, lot.ID, f.plant.ID, domain.StatusReceived, 500)
	f.append(t, lot.ID, f.plant.ID, domain.StatusProcessing, 480)
	f.append(t, lot.ID, f.depot.ID, domain.StatusStored, 460)

	assert.Equal(t, 480.0, f.stock(t, f.plant.ID))
	assert.Equal(t, 460.0, f.stock(t, f.depot.ID))
	assert.Equal(t, 3, f.metrics.appended)
	assert.Len(t, f.notifier.events, 3)
}

func TestTracking_AppendEvent_StoredThenShipped(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 300)

	f.append(t, lot.ID, f.plant.ID, domain.StatusStored, 300)
	f.append(t, lot.ID, f.plant.ID, domain.StatusShipped, 300)

	assert.Equal(t, 0.0, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_UnknownFacility(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 100)

	_, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: lot.ID, FacilityID: "missing", Status: "stored", Quantity: 100,
	})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	latest, err := f.uc.Latest(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
	assert.Zero(t, f.stock(t, f.plant.ID))
	assert.Empty(t, f.notifier.events)
	assert.Equal(t, 1, f.metrics.rejected[domain.ErrCodeNotFound])
}

func TestTracking_AppendEvent_UnknownLot(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())

	_, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: "missing", FacilityID: f.plant.ID, Status: "stored", Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrLotNotFound)
}

func TestTracking_AppendEvent_Authorization(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 100)
	in := AppendInput{LotID: lot.ID, FacilityID: f.plant.ID, Status: "stored", Quantity: 10}

	_, err := f.uc.AppendEvent(context.Background(), producer, in)
	assert.True(t, domain.IsForbidden(err))

	_, err = f.uc.AppendEvent(context.Background(), domain.Actor{}, in)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Zero(t, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_InvalidInput(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 100)

	cases := map[string]AppendInput{
		"unknown status":    {LotID: lot.ID, FacilityID: f.plant.ID, Status: "lost", Quantity: 1},
		"negative quantity": {LotID: lot.ID, FacilityID: f.plant.ID, Status: "stored", Quantity: -1},
		"above lot":         {LotID: lot.ID, FacilityID: f.plant.ID, Status: "stored", Quantity: 101},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.AppendEvent(context.Background(), operator, in)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
	assert.Zero(t, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_MonotonicAgainstLatest(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 500)

	f.append(t, lot.ID, f.plant.ID, domain.StatusProcessing, 400)
	_, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: lot.ID, FacilityID: f.plant.ID, Status: "processing", Quantity: 450,
	})
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 400.0, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_PermissiveAllowsNegativeStock(t *testing.T) {
	f := newFixture(t, domain.PermissivePolicy())
	lot := f.lot(t, 100)

	f.append(t, lot.ID, f.plant.ID, domain.StatusStored, 100)
	f.append(t, lot.ID, f.plant.ID, domain.StatusShipped, 250)

	assert.Equal(t, -150.0, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_RejectNegativeStock(t *testing.T) {
	f := newFixture(t, domain.LedgerPolicy{RejectNegativeStock: true})
	lot := f.lot(t, 100)

	f.append(t, lot.ID, f.plant.ID, domain.StatusStored, 100)
	_, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: lot.ID, FacilityID: f.plant.ID, Status: "shipped", Quantity: 150,
	})
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 100.0, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_StrictTransitions(t *testing.T) {
	f := newFixture(t, domain.LedgerPolicy{StrictTransitions: true})
	lot := f.lot(t, 100)

	_, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: lot.ID, FacilityID: f.plant.ID, Status: "shipped", Quantity: 100,
	})
	assert.True(t, domain.IsValidation(err))

	f.append(t, lot.ID, f.plant.ID, domain.StatusReceived, 100)
	f.append(t, lot.ID, f.plant.ID, domain.StatusStored, 100)
	f.append(t, lot.ID, f.plant.ID, domain.StatusShipped, 100)
	assert.Zero(t, f.stock(t, f.plant.ID))
}

type failingStore struct {
	*memory.Store
}

func (s failingStore) WithinTx(ctx context.Context, fn func(tx repository.Stores) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Stores) error {
		return fn(failingStores{tx})
	})
}

type failingStores struct {
	repository.Stores
}

func (s failingStores) Facilities() repository.FacilityRepository {
	return failingFacilities{s.Stores.Facilities()}
}

type failingFacilities struct {
	repository.FacilityRepository
}

func (failingFacilities) SetStock(context.Context, string, float64) error {
	return errors.New("disk full")
}

func TestTracking_AppendEvent_StorageFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 100)
	uc := New(failingStore{f.store}, domain.DefaultPolicy(), nil, WithNotifier(f.notifier))

	_, err := uc.AppendEvent(context.Background(), operator, AppendInput{
		LotID: lot.ID, FacilityID: f.plant.ID, Status: "stored", Quantity: 100,
	})
	require.Error(t, err)

	history, err := f.uc.History(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Zero(t, f.stock(t, f.plant.ID))
	assert.Empty(t, f.notifier.events)
}

func TestTracking_AppendEvent_NotifierFailureKeepsEvent(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	f.notifier.err = errors.New("outbox closed")
	lot := f.lot(t, 100)

	ev := f.append(t, lot.ID, f.plant.ID, domain.StatusStored, 100)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 100.0, f.stock(t, f.plant.ID))
}

func TestTracking_AppendEvent_ConcurrentSameFacility(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	const writers = 50

	lots := make([]*domain.Lot, writers)
	for i := range lots {
		lots[i] = f.lot(t, 10)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(lotID string) {
			defer wg.Done()
			_, err := f.uc.AppendEvent(context.Background(), operator, AppendInput{
				LotID: lotID, FacilityID: f.plant.ID, Status: "stored", Quantity: 2,
			})
			errs <- err
		}(lots[i].ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 100.0, f.stock(t, f.plant.ID))
	rec, err := f.uc.Reconcile(context.Background(), f.plant.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.Equal(t, writers, rec.Events)
}

func TestTracking_StockConservation_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		f := newFixture(t, domain.PermissivePolicy())
		lots := []*domain.Lot{f.lot(t, 1000), f.lot(t, 1000), f.lot(t, 1000)}

		for i := 0; i < 60; i++ {
			status := domain.Statuses[rng.Intn(len(domain.Statuses))]
			qty := float64(rng.Intn(400)) / 4
			f.append(t, lots[rng.Intn(len(lots))].ID, f.plant.ID, status, qty)
		}

		rec, err := f.uc.Reconcile(context.Background(), f.plant.ID)
		require.NoError(t, err)
		assert.True(t, rec.Consistent(), "run %d drifted by %v", run, rec.Drift)
		assert.Equal(t, 60, rec.Events)
	}
}

func TestTracking_HistoryAndLatest(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 500)

	first := f.append(t, lot.ID, f.plant.ID, domain.StatusReceived, 500)
	second := f.append(t, lot.ID, f.plant.ID, domain.StatusProcessing, 480)

	history, err := f.uc.History(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	latest, err := f.uc.Latest(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = f.uc.History(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrLotNotFound)
}

// listHookStore runs onList once, right after the first event listing
// returns.
type listHookStore struct {
	repository.Store
	onList func()
}

func (s *listHookStore) Events() repository.EventRepository {
	return listHookEvents{EventRepository: s.Store.Events(), store: s}
}

type listHookEvents struct {
	repository.EventRepository
	store *listHookStore
}

func (e listHookEvents) List(ctx context.Context, filter repository.EventFilter) ([]domain.TrackingEvent, error) {
	out, err := e.EventRepository.List(ctx, filter)
	if hook := e.store.onList; hook != nil {
		e.store.onList = nil
		hook()
	}
	return out, err
}

func TestTracking_HistoryPagesStableAcrossAppends(t *testing.T) {
	f := newFixture(t, domain.PermissivePolicy())
	lot := f.lot(t, 500)

	var want []string
	for i := 0; i < 5; i++ {
		ev := f.append(t, lot.ID, f.plant.ID, domain.StatusProcessing, 10)
		want = append([]string{ev.ID}, want...)
	}

	hooked := &listHookStore{Store: f.store}
	reader := New(hooked, domain.PermissivePolicy(), nil, WithPageSize(2))

	var late *domain.TrackingEvent
	hooked.onList = func() { late = f.append(t, lot.ID, f.plant.ID, domain.StatusProcessing, 10) }
	history, err := reader.History(context.Background(), lot.ID)
	require.NoError(t, err)
	require.NotNil(t, late)

	var got []string
	for _, ev := range history {
		got = append(got, ev.ID)
	}
	assert.Equal(t, want, got)

	hooked.onList = func() { f.append(t, lot.ID, f.depot.ID, domain.StatusStored, 10) }
	atPlant, err := reader.FacilityEvents(context.Background(), operator, f.plant.ID)
	require.NoError(t, err)
	assert.Len(t, atPlant, 6)
	assert.Equal(t, late.ID, atPlant[0].ID)
}

func TestTracking_FacilityEvents(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 500)
	f.append(t, lot.ID, f.plant.ID, domain.StatusReceived, 500)
	f.append(t, lot.ID, f.depot.ID, domain.StatusStored, 400)

	events, err := f.uc.FacilityEvents(context.Background(), operator, f.depot.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.StatusStored, events[0].Status)

	_, err = f.uc.FacilityEvents(context.Background(), producer, f.depot.ID)
	assert.True(t, domain.IsForbidden(err))
}

func TestTracking_RebuildRepairsDrift(t *testing.T) {
	f := newFixture(t, domain.DefaultPolicy())
	lot := f.lot(t, 500)
	f.append(t, lot.ID, f.depot.ID, domain.StatusStored, 500)
	require.NoError(t, f.store.Facilities().SetStock(context.Background(), f.depot.ID, 999))

	rec, err := f.uc.Reconcile(context.Background(), f.depot.ID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.Equal(t, 499.0, rec.Drift)
	assert.Equal(t, 499.0, f.metrics.drift[f.depot.ID])

	rebuilt, err := f.uc.Rebuild(context.Background(), f.depot.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, rebuilt.ReplayedStock)
	assert.Equal(t, 500.0, f.stock(t, f.depot.ID))

	all, err := f.uc.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, r := range all {
		assert.True(t, r.Consistent())
	}
}
