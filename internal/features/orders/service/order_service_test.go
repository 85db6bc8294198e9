package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"smm-orders/internal/core/config"
	"smm-orders/internal/core/database"
	"smm-orders/internal/core/metrics"
	"smm-orders/internal/core/requestdef"
	"smm-orders/internal/features/orders/adapters/gormstore"
	"smm-orders/internal/features/orders/adapters/smm"
	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"
	"smm-orders/internal/features/orders/registry"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeProvider writes an external id through the store it was built with
// before returning the configured outcome.
type fakeProvider struct {
	target    domain.Target
	store     ports.OrderStore
	submitErr error
	panicMsg  string
	syncErr   error
	cancelErr error

	// onSubmit runs after the external id write, inside the start transaction.
	onSubmit func(order *domain.Order)
}

func (p *fakeProvider) ID() int { return 9 }

func (p *fakeProvider) Submit(ctx context.Context, _ domain.Interval) error {
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	order := p.target.Order()
	ext := "999"
	changes := domain.Changes{ExternalID: &ext}
	if err := p.store.UpdateFields(ctx, order.ID, changes); err != nil {
		return err
	}
	order.Apply(changes)
	if p.onSubmit != nil {
		p.onSubmit(order)
	}
	return p.submitErr
}

func (p *fakeProvider) FetchStatuses(context.Context) error { return p.syncErr }
func (p *fakeProvider) Cancel(context.Context) error { return p.cancelErr }

// fakeFactory hands out fakeProviders configured from its template.
type fakeFactory struct {
	mu       sync.Mutex
	template fakeProvider
	err      error
	calls    int
	last     *fakeProvider
}

func (f *fakeFactory) CreateDefault(target domain.Target, store ports.OrderStore) (ports.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := f.template
	p.target = target
	p.store = store
	f.last = &p
	return &p, nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, gormstore.Models()...))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func noWait() Option {
	return WithCompensationBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }, 3)
}

func newService(t *testing.T, factory ports.ProviderFactory, opts ...Option) (*OrderService, *gormstore.Store) {
	db := setupDB(t)
	store := gormstore.NewStore(db)
	opts = append([]Option{noWait()}, opts...)
	return NewOrderService(store, gormstore.NewUnitOfWorkFactory(db), factory, opts...), store
}

func createOrder(t *testing.T, svc *OrderService) *domain.Order {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), 1625, "https://instagram.com/p/abc", 100)
	require.NoError(t, err)
	return o
}

// TestOrderService_Start_Success verifies the order is in progress and submitted.
func TestOrderService_Start_Success(t *testing.T) {
	factory := &fakeFactory{}
	m := metrics.New()
	svc, store := newService(t, factory, WithMetrics(m))
	order := createOrder(t, svc)

	ok := svc.Start(context.Background(), order, domain.NoInterval)
	require.True(t, ok)

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "999", *got.ExternalID)
	assert.Equal(t, domain.StatusInProgress, order.Status)
	assert.Equal(t, 1, factory.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrderStarts.WithLabelValues("submitted")))
}

// TestOrderService_Start_SubmitFailure verifies rollback followed by the cancelled write.
func TestOrderService_Start_SubmitFailure(t *testing.T) {
	factory := &fakeFactory{template: fakeProvider{submitErr: errors.New("provider exploded")}}
	m := metrics.New()
	svc, store := newService(t, factory, WithMetrics(m))
	order := createOrder(t, svc)

	ok := svc.Start(context.Background(), order, domain.Minutes(10))
	assert.False(t, ok)

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, got.ExternalID, "writes made inside the transaction are rolled back")

	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Nil(t, order.ExternalID)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrderStarts.WithLabelValues("failed")))
}

// TestOrderService_Start_FactoryError verifies registry failures are compensated too.
func TestOrderService_Start_FactoryError(t *testing.T) {
	factory := &fakeFactory{err: &registry.ProviderNotFoundError{ID: 1}}
	svc, store := newService(t, factory)
	order := createOrder(t, svc)

	assert.False(t, svc.Start(context.Background(), order, domain.NoInterval))

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

// TestOrderService_Start_Panic verifies a panicking provider does not escape Start.
func TestOrderService_Start_Panic(t *testing.T) {
	factory := &fakeFactory{template: fakeProvider{panicMsg: "nil map"}}
	svc, store := newService(t, factory)
	order := createOrder(t, svc)

	assert.NotPanics(t, func() {
		assert.False(t, svc.Start(context.Background(), order, domain.NoInterval))
	})

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

// TestOrderService_Start_SkipPush verifies submission is skipped but the status still moves.
func TestOrderService_Start_SkipPush(t *testing.T) {
	factory := &fakeFactory{}
	m := metrics.New()
	svc, store := newService(t, factory, WithMetrics(m), WithSkipPush(func(*domain.Order) bool { return true }))
	order := createOrder(t, svc)

	assert.True(t, svc.SkipPush(order))
	assert.True(t, svc.Start(context.Background(), order, domain.NoInterval))

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Nil(t, got.ExternalID)
	assert.Zero(t, factory.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrderStarts.WithLabelValues("skipped")))
}

// TestOrderService_SkipPush_Default verifies submission happens by default.
func TestOrderService_SkipPush_Default(t *testing.T) {
	svc := NewOrderService(nil, nil, nil)
	assert.False(t, svc.SkipPush(&domain.Order{}))
}

// TestOrderService_Start_HTTPFailure verifies the full path against a failing provider API.
func TestOrderService_Start_HTTPFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	client := smm.NewClient(config.ProviderConfig{Host: api.URL, Key: "k"}, requestdef.NewSender(api.Client()))
	svc, store := newService(t, registry.NewDefaultRegistry(client))
	order := createOrder(t, svc)

	assert.False(t, svc.Start(context.Background(), order, domain.NoInterval))

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, got.ExternalID)
}

// TestOrderService_Start_HTTPSuccess verifies the full path against a working provider API.
func TestOrderService_Start_HTTPSuccess(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order":"12345"}`))
	}))
	defer api.Close()

	client := smm.NewClient(config.ProviderConfig{Host: api.URL, Key: "k"}, requestdef.NewSender(api.Client()))
	svc, store := newService(t, registry.NewDefaultRegistry(client))
	order := createOrder(t, svc)

	require.True(t, svc.Start(context.Background(), order, domain.NoInterval))

	got, err := store.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Equal(t, "12345", *got.ExternalID)
	assert.Equal(t, smm.ProviderID, *got.ServiceID)
}

// MockOrderRepository is a mock implementation of ports.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) UpdateFields(ctx context.Context, id uint, changes domain.Changes) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Order, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) BulkUpdateWhereExternalIDIn(ctx context.Context, ids []string, changes domain.Changes) error {
	args := m.Called(ctx, ids, changes)
	return args.Error(0)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Get(ctx context.Context, id uint) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetMany(ctx context.Context, ids []uint) ([]*domain.Order, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListSyncable(ctx context.Context, afterID uint, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

// failingUnitOfWork cannot open a transaction.
type failingUnitOfWork struct{}

func (failingUnitOfWork) Begin(context.Context) error { return errors.New("too many connections") }
func (failingUnitOfWork) Commit(context.Context) error { return nil }
func (failingUnitOfWork) Rollback(context.Context) error { return nil }
func (failingUnitOfWork) Orders() ports.OrderStore { return nil }

type failingUnitOfWorkFactory struct{}

func (failingUnitOfWorkFactory) Create() ports.UnitOfWork { return failingUnitOfWork{} }

// TestOrderService_Start_CompensationRetried verifies the cancelled write is retried.
func TestOrderService_Start_CompensationRetried(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(repo, failingUnitOfWorkFactory{}, &fakeFactory{}, noWait())
	order := &domain.Order{ID: 5, Status: domain.StatusPending}

	cancelled := domain.StatusChange(domain.StatusCancelled)
	repo.On("UpdateFields", mock.Anything, uint(5), cancelled).Return(errors.New("database is locked")).Twice()
	repo.On("UpdateFields", mock.Anything, uint(5), cancelled).Return(nil).Once()

	assert.False(t, svc.Start(context.Background(), order, domain.NoInterval))
	assert.Equal(t, domain.StatusCancelled, order.Status)
	repo.AssertExpectations(t)
}

// TestOrderService_Start_CompensationExhausted verifies a failing cancelled write is given up on.
func TestOrderService_Start_CompensationExhausted(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(repo, failingUnitOfWorkFactory{}, &fakeFactory{}, noWait())
	order := &domain.Order{ID: 5, Status: domain.StatusPending}

	repo.On("UpdateFields", mock.Anything, uint(5), mock.Anything).Return(errors.New("disk full"))

	assert.False(t, svc.Start(context.Background(), order, domain.NoInterval))
	assert.Equal(t, domain.StatusPending, order.Status)
	repo.AssertNumberOfCalls(t, "UpdateFields", 4)
}

// TestOrderService_Start_CompensationNotFound verifies a vanished order is not retried.
func TestOrderService_Start_CompensationNotFound(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(repo, failingUnitOfWorkFactory{}, &fakeFactory{}, noWait())

	repo.On("UpdateFields", mock.Anything, uint(5), mock.Anything).Return(ports.ErrOrderNotFound)

	assert.False(t, svc.Start(context.Background(), &domain.Order{ID: 5}, domain.NoInterval))
	repo.AssertNumberOfCalls(t, "UpdateFields", 1)
}

// TestOrderService_SyncStatuses verifies delegation and error propagation.
func TestOrderService_SyncStatuses(t *testing.T) {
	repo := new(MockOrderRepository)
	boom := errors.New("provider down")
	factory := &fakeFactory{template: fakeProvider{syncErr: boom}}
	svc := NewOrderService(repo, nil, factory)

	target := domain.Batch(&domain.Order{ID: 1}, &domain.Order{ID: 2})
	assert.ErrorIs(t, svc.SyncStatuses(context.Background(), target), boom)
	assert.Equal(t, 1, factory.calls)
	assert.Same(t, repo, factory.last.store)
	assert.Equal(t, 2, factory.last.target.Len())

	factory.err = &registry.ProviderNotFoundError{ID: 1}
	var nf *registry.ProviderNotFoundError
	assert.ErrorAs(t, svc.SyncStatuses(context.Background(), target), &nf)
}

// TestOrderService_Cancel verifies delegation and error propagation.
func TestOrderService_Cancel(t *testing.T) {
	boom := errors.New("provider down")
	factory := &fakeFactory{template: fakeProvider{cancelErr: boom}}
	svc := NewOrderService(new(MockOrderRepository), nil, factory)

	assert.ErrorIs(t, svc.Cancel(context.Background(), domain.Single(&domain.Order{ID: 1})), boom)

	factory.template.cancelErr = nil
	assert.NoError(t, svc.Cancel(context.Background(), domain.Single(&domain.Order{ID: 1})))
}

// TestOrderService_CreateOrder verifies catalog validation and persistence.
func TestOrderService_CreateOrder(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(repo, nil, nil)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil).Once()

		o, err := svc.CreateOrder(ctx, 1518, "https://instagram.com/p/abc", 10)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, o.Status)
		repo.AssertExpectations(t)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := svc.CreateOrder(ctx, 1518, "https://instagram.com/p/abc", 10_000)
		assert.ErrorIs(t, err, domain.ErrQuantityOutOfRange)
	})

	t.Run("RepoError", func(t *testing.T) {
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(errors.New("db error")).Once()

		_, err := svc.CreateOrder(ctx, 1518, "https://instagram.com/p/abc", 10)
		assert.Error(t, err)
		repo.AssertExpectations(t)
	})
}

// TestOrderService_Start_ConcurrentOrdersFileDB verifies a start waiting on
// another order's open transaction is not cancelled.
func TestOrderService_Start_ConcurrentOrdersFileDB(t *testing.T) {
	if testing.Short() {
		t.Skip("holds a transaction past the default sqlite busy timeout")
	}

	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "orders.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, gormstore.Models()...))
	t.Cleanup(func() { database.Close(db) })

	store := gormstore.NewStore(db)
	firstWrote := make(chan struct{})
	var once sync.Once

	factory := &fakeFactory{template: fakeProvider{onSubmit: func(*domain.Order) {
		once.Do(func() {
			close(firstWrote)
			time.Sleep(6 * time.Second)
		})
	}}}
	svc := NewOrderService(store, gormstore.NewUnitOfWorkFactory(db), factory, noWait())

	first := createOrder(t, svc)
	second := createOrder(t, svc)

	var firstOK bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		firstOK = svc.Start(context.Background(), first, domain.NoInterval)
	}()

	select {
	case <-firstWrote:
	case <-time.After(5 * time.Second):
		t.Fatal("first start never reached the provider")
	}

	// Reads are not blocked by the open write transaction.
	got, err := store.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	secondOK := svc.Start(context.Background(), second, domain.NoInterval)
	<-done

	assert.True(t, firstOK)
	assert.True(t, secondOK)

	for _, id := range []uint{first.ID, second.ID} {
		got, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, got.Status)
	}
}
