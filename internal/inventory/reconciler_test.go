package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a DocumentStore with real compare-and-swap semantics:
// the version token changes on every successful update.
type memoryStore struct {
	mu       sync.Mutex
	doc      Document
	revision int
	fetchErr error
	// hook runs between a Fetch and the Update that follows it, to
	// simulate a concurrent writer
	betweenFetchAndUpdate func(*memoryStore)
	fired                 bool
}

func (s *memoryStore) Fetch(_ context.Context) (*Document, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, "", s.fetchErr
	}
	doc := s.doc // copy header; Products slice is rebuilt below
	doc.Products = make([]Record, len(s.doc.Products))
	copy(doc.Products, s.doc.Products)
	return &doc, strconv.Itoa(s.revision), nil
}

func (s *memoryStore) Update(_ context.Context, doc *Document, version string) error {
	if s.betweenFetchAndUpdate != nil && !s.fired {
		s.fired = true
		s.betweenFetchAndUpdate(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if version != strconv.Itoa(s.revision) {
		return ErrVersionConflict
	}
	s.doc = *doc
	s.revision++
	return nil
}

func (s *memoryStore) bumpRevision() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
}

func newMemoryStore() *memoryStore {
	return &memoryStore{doc: *testDocument()}
}

func TestReconcile_DecrementsAndWrites(t *testing.T) {
	store := newMemoryStore()
	rec := NewReconciler(store, 0)

	err := rec.Reconcile(context.Background(), []PurchasedItem{
		{Name: "Birthday Wishes", Quantity: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, *store.doc.Products[0].Inventory)
	assert.Equal(t, 1, store.revision, "exactly one write")
}

func TestReconcile_NoItems(t *testing.T) {
	rec := NewReconciler(newMemoryStore(), 0)
	assert.Error(t, rec.Reconcile(context.Background(), nil))
}

func TestReconcile_NoMatchedItemsSkipsWrite(t *testing.T) {
	store := newMemoryStore()
	rec := NewReconciler(store, 0)

	err := rec.Reconcile(context.Background(), []PurchasedItem{
		{Name: "No Such Card", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, store.revision, "no write when nothing changed")
}

func TestReconcile_RetriesOnConflict(t *testing.T) {
	store := newMemoryStore()
	// another checkout commits between our fetch and update
	store.betweenFetchAndUpdate = func(s *memoryStore) { s.bumpRevision() }
	rec := NewReconciler(store, 3)

	err := rec.Reconcile(context.Background(), []PurchasedItem{
		{Name: "Birthday Wishes", Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 4, *store.doc.Products[0].Inventory)
}

func TestReconcile_SurfacesConflictAfterBudget(t *testing.T) {
	store := newMemoryStore()
	store.betweenFetchAndUpdate = func(s *memoryStore) { s.bumpRevision() }
	store.fired = false
	rec := NewReconciler(store, 1)

	err := rec.Reconcile(context.Background(), []PurchasedItem{
		{Name: "Birthday Wishes", Quantity: 1},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)
	// losing writer changed nothing
	assert.Equal(t, 5, *store.doc.Products[0].Inventory)
}

func TestReconcile_ConcurrentLastUnit(t *testing.T) {
	// two orders race for the same document revision: exactly one
	// write wins, the loser sees the conflict
	store := newMemoryStore()

	doc1, v1, err := store.Fetch(context.Background())
	require.NoError(t, err)
	doc2, v2, err := store.Fetch(context.Background())
	require.NoError(t, err)

	doc1.ApplyPurchase([]PurchasedItem{{Name: "Heartfelt Thanks", Quantity: 1}})
	doc2.ApplyPurchase([]PurchasedItem{{Name: "Heartfelt Thanks", Quantity: 1}})

	require.NoError(t, store.Update(context.Background(), doc1, v1))
	err = store.Update(context.Background(), doc2, v2)
	assert.ErrorIs(t, err, ErrVersionConflict)

	assert.Equal(t, 0, *store.doc.Products[1].Inventory)
}

func TestReconcile_FetchFailurePropagates(t *testing.T) {
	store := newMemoryStore()
	store.fetchErr = errors.New("upstream down")
	rec := NewReconciler(store, 0)

	err := rec.Reconcile(context.Background(), []PurchasedItem{
		{Name: "Birthday Wishes", Quantity: 1},
	})

	assert.ErrorContains(t, err, "fetch inventory document")
}

func TestReconcile_UpdateFailurePropagates(t *testing.T) {
	store := &failingUpdateStore{memoryStore: newMemoryStore()}
	rec := NewReconciler(store, 3)

	err := rec.Reconcile(context.Background(), []PurchasedItem{
		{Name: "Birthday Wishes", Quantity: 1},
	})

	assert.ErrorContains(t, err, "update inventory document")
}

type failingUpdateStore struct {
	*memoryStore
}

func (s *failingUpdateStore) Update(context.Context, *Document, string) error {
	return fmt.Errorf("write refused")
}
