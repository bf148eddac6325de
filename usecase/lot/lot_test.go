package lot

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/pkg/identity"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/repository/memory"
)

var (
	producer = domain.Actor{ID: "P1", Role: domain.RoleProducer}
	other    = domain.Actor{ID: "P2", Role: domain.RoleProducer}
	operator = domain.Actor{ID: "OP1", Role: domain.RoleWarehouseOperator}
)

type stubHistory struct {
	events map[string][]domain.TrackingEvent
}

func (s stubHistory) History(_ context.Context, lotID string) ([]domain.TrackingEvent, error) {
	return s.events[lotID], nil
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) Get(context.Context, string, interface{}) (repository.CacheGeneration, bool, error) {
	return 0, false, nil
}

func (c *countingCache) Set(context.Context, repository.CacheGeneration, string, interface{}) error {
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

func newUseCase(history HistoryReader, opts ...Option) (*UseCase, *memory.Store) {
	store := memory.NewStore()
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		at = at.Add(time.Millisecond)
		return at
	}
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(store, identity.NewGenerator(), history, nil, opts...), store
}

func TestLot_Register_Tomato(t *testing.T) {
	cache := &countingCache{}
	uc, _ := newUseCase(nil, WithCache(cache))

	lot, err := uc.Register(context.Background(), producer, RegisterInput{ProduceType: "tomato", Quantity: 500})
	require.NoError(t, err)

	require.Len(t, lot.ContentHash, 64)
	_, err = hex.DecodeString(lot.ContentHash)
	assert.NoError(t, err)
	assert.Equal(t, 500.0, lot.Quantity)
	assert.Equal(t, domain.GradeA, lot.QualityGrade)
	assert.Equal(t, "P1", lot.ProducerID)
	assert.NotEmpty(t, lot.ID)
	assert.Equal(t, 1, cache.invalidations)
}

func TestLot_Register_DistinctHashesForIdenticalInput(t *testing.T) {
	uc, _ := newUseCase(nil)
	in := RegisterInput{ProduceType: "tomato", Quantity: 500}

	a, err := uc.Register(context.Background(), producer, in)
	require.NoError(t, err)
	b, err := uc.Register(context.Background(), producer, in)
	require.NoError(t, err)

	assert.NotEqual(t, a.ContentHash, b.ContentHash)
	assert.True(t, b.CreatedAt.After(a.CreatedAt))
}

func TestLot_Register_Validation(t *testing.T) {
	uc, store := newUseCase(nil)

	cases := map[string]RegisterInput{
		"zero quantity":     {ProduceType: "tomato", Quantity: 0},
		"negative quantity": {ProduceType: "tomato", Quantity: -5},
		"unknown produce":   {ProduceType: "durian", Quantity: 5},
		"unknown grade":     {ProduceType: "onion", Quantity: 5, QualityGrade: "Z"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Register(context.Background(), producer, in)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}

	n, err := store.Lots().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLot_Register_OnlyProducers(t *testing.T) {
	uc, _ := newUseCase(nil)

	_, err := uc.Register(context.Background(), operator, RegisterInput{ProduceType: "tomato", Quantity: 1})
	assert.True(t, domain.IsForbidden(err))

	_, err = uc.Register(context.Background(), domain.Actor{Role: domain.RoleProducer}, RegisterInput{ProduceType: "tomato", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLot_ListByProducer_LazyAndRestartable(t *testing.T) {
	uc, _ := newUseCase(nil, WithPageSize(2))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		lot, err := uc.Register(ctx, producer, RegisterInput{ProduceType: "carrot", Quantity: float64(10 + i)})
		require.NoError(t, err)
		ids = append(ids, lot.ID)
	}
	_, err := uc.Register(ctx, other, RegisterInput{ProduceType: "carrot", Quantity: 1})
	require.NoError(t, err)

	seq := uc.ListByProducer(ctx, producer.ID)
	var first []string
	for lot, err := range seq {
		require.NoError(t, err)
		first = append(first, lot.ID)
	}
	assert.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, first)

	var again []string
	for lot, err := range seq {
		require.NoError(t, err)
		again = append(again, lot.ID)
		if len(again) == 2 {
			break
		}
	}
	assert.Equal(t, first[:2], again)
}

func TestLot_List_ScopedByRole(t *testing.T) {
	uc, _ := newUseCase(nil)
	ctx := context.Background()

	_, err := uc.Register(ctx, producer, RegisterInput{ProduceType: "pepper", Quantity: 3})
	require.NoError(t, err)
	_, err = uc.Register(ctx, other, RegisterInput{ProduceType: "pepper", Quantity: 4})
	require.NoError(t, err)

	own, err := uc.List(ctx, producer)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, producer.ID, own[0].ProducerID)

	all, err := uc.List(ctx, operator)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLot_View(t *testing.T) {
	history := stubHistory{events: map[string][]domain.TrackingEvent{}}
	uc, _ := newUseCase(history)
	ctx := context.Background()

	lot, err := uc.Register(ctx, producer, RegisterInput{ProduceType: "lettuce", Quantity: 20, QualityGrade: "b"})
	require.NoError(t, err)
	assert.Equal(t, domain.GradeB, lot.QualityGrade)
	history.events[lot.ID] = []domain.TrackingEvent{{ID: "e1", LotID: lot.ID, Status: domain.StatusReceived}}

	detail, err := uc.View(ctx, producer, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, lot.ID, detail.Lot.ID)
	assert.Len(t, detail.History, 1)

	_, err = uc.View(ctx, other, lot.ID)
	assert.True(t, domain.IsForbidden(err))

	_, err = uc.View(ctx, operator, lot.ID)
	assert.NoError(t, err)

	_, err = uc.View(ctx, operator, "missing")
	assert.ErrorIs(t, err, domain.ErrLotNotFound)
}
