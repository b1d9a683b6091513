package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
)

// memStoreRepo はインメモリの store.Repository
// トランザクションは txMu で直列化し、書き込みはコミット時にまとめて反映する
// latency を設定すると各操作がその分だけ待機する
type memStoreRepo struct {
	txMu        sync.Mutex
	mu          sync.Mutex
	latency     time.Duration
	stores      map[string]*store.Store
	occupancy   map[string]store.Occupancy
	adjustments map[string]store.Adjustment
}

func newMemStoreRepo(stores ...*store.Store) *memStoreRepo {
	r := &memStoreRepo{
		stores:      map[string]*store.Store{},
		occupancy:   map[string]store.Occupancy{},
		adjustments: map[string]store.Adjustment{},
	}
	for _, s := range stores {
		r.stores[s.ID] = s
	}
	return r
}

// memTx は開始から終了まで txMu を保持する
type memTx struct {
	repo        *memStoreRepo
	done        bool
	occupancy   []store.Occupancy
	adjustments []store.Adjustment
}

func (r *memStoreRepo) sleep() {
	if r.latency > 0 {
		time.Sleep(r.latency)
	}
}

func (r *memStoreRepo) Begin(ctx context.Context) (transaction.Tx, error) {
	r.txMu.Lock()
	return &memTx{repo: r}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Lock()
	for _, occ := range t.occupancy {
		t.repo.occupancy[occ.StoreID] = occ
	}
	for _, adj := range t.adjustments {
		t.repo.adjustments[adj.Key] = adj
	}
	t.repo.mu.Unlock()
	t.repo.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.txMu.Unlock()
	return nil
}

func (r *memStoreRepo) Create(ctx context.Context, s *store.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[s.ID]; ok {
		return store.ErrStoreAlreadyExists
	}
	r.stores[s.ID] = s
	return nil
}

func (r *memStoreRepo) GetByID(ctx context.Context, id string) (*store.Store, error) {
	r.sleep()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	if !ok {
		return nil, store.ErrStoreNotFound
	}
	return s, nil
}

func (r *memStoreRepo) GetOccupancy(ctx context.Context, storeID string) (*store.Occupancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	occ, ok := r.occupancy[storeID]
	if !ok {
		return nil, store.ErrOccupancyNotFound
	}
	return &occ, nil
}

// ApplyDelta はトランザクション内で呼ばれるため、他の書き込みとは txMu で直列化される
func (r *memStoreRepo) ApplyDelta(ctx context.Context, tx transaction.Tx, storeID string, delta, totalSeats int) (*store.Occupancy, error) {
	r.sleep()
	r.mu.Lock()
	defer r.mu.Unlock()
	occ, ok := r.occupancy[storeID]
	if !ok {
		occ = *store.EmptyOccupancy(storeID)
	}
	next, err := occ.Apply(delta, totalSeats)
	if err != nil {
		return nil, err
	}
	mt := tx.(*memTx)
	mt.occupancy = append(mt.occupancy, *next)
	return next, nil
}

func (r *memStoreRepo) RecordAdjustment(ctx context.Context, tx transaction.Tx, adj *store.Adjustment) error {
	r.sleep()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adjustments[adj.Key]; ok {
		return store.ErrAdjustmentAlreadyApplied
	}
	mt := tx.(*memTx)
	mt.adjustments = append(mt.adjustments, *adj)
	return nil
}

func (r *memStoreRepo) GetAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	r.sleep()
	r.mu.Lock()
	defer r.mu.Unlock()
	adj, ok := r.adjustments[key]
	if !ok {
		return nil, store.ErrAdjustmentNotFound
	}
	return &adj, nil
}

func (r *memStoreRepo) inUse(storeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupancy[storeID].InUse
}

// memAvailabilityCache は version を比較して書き込むインメモリのキャッシュ
type memAvailabilityCache struct {
	mu      sync.Mutex
	entries map[string]cachedAvailability
}

type cachedAvailability struct {
	available int
	version   int64
}

func newMemAvailabilityCache() *memAvailabilityCache {
	return &memAvailabilityCache{entries: map[string]cachedAvailability{}}
}

func (c *memAvailabilityCache) GetAvailable(ctx context.Context, storeID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[storeID]
	if !ok {
		return 0, redisinfra.ErrCacheMiss
	}
	return e.available, nil
}

func (c *memAvailabilityCache) SetAvailable(ctx context.Context, storeID string, available int, version int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[storeID]; ok && e.version > version {
		return nil
	}
	c.entries[storeID] = cachedAvailability{available: available, version: version}
	return nil
}

func (c *memAvailabilityCache) Invalidate(ctx context.Context, storeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, storeID)
	return nil
}

// memBookingRepo はインメモリの booking.Repository
type memBookingRepo struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]booking.Booking
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: map[int64]booking.Booking{}}
}

func (r *memBookingRepo) Create(ctx context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	r.bookings[b.ID] = *b
	return nil
}

func (r *memBookingRepo) GetByID(ctx context.Context, id int64) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return &b, nil
}

func (r *memBookingRepo) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*booking.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memBookingRepo) UpdateStatus(ctx context.Context, b *booking.Booking, prev booking.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if cur.Status != prev {
		return booking.ErrStatusConflict
	}
	r.bookings[b.ID] = *b
	return nil
}

func (r *memBookingRepo) GetStalePending(ctx context.Context, olderThan time.Duration) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-olderThan)
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(threshold) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBookingRepo) GetReleasePending(ctx context.Context, limit int) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.bookings {
		if b.Status == booking.StatusCancelled && b.ReleasePending {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// setCreatedAt はリコンサイルのテスト用に作成日時を書き換える
func (r *memBookingRepo) setCreatedAt(id int64, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[id]
	b.CreatedAt = t
	r.bookings[id] = b
}
