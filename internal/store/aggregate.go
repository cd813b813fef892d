package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ginjaninja78/order-history-export/internal/types"
)

// Key families, relative to the namespace.
const (
	orderKeyPrefix = "ORDER_"
	countKey       = "COUNT"
	dateMinKey     = "DATE_MIN"
	dateMaxKey     = "DATE_MAX"
)

// AggregateStore keeps one record per order id plus the derived statistics
// (order count, min and max order date). All keys it owns start with the
// namespace; nothing else in the KV is touched.
type AggregateStore struct {
	mu        sync.Mutex
	kv        KV
	namespace string
}

// NewAggregateStore builds a store over kv. namespace is prepended to every key.
func NewAggregateStore(kv KV, namespace string) *AggregateStore {
	return &AggregateStore{kv: kv, namespace: namespace}
}

// OrderKey returns the key a record with the given id is stored under.
func (s *AggregateStore) OrderKey(id string) string {
	return s.namespace + orderKeyPrefix + id
}

func (s *AggregateStore) orderPrefix() string { return s.namespace + orderKeyPrefix }
func (s *AggregateStore) countKey() string    { return s.namespace + countKey }
func (s *AggregateStore) dateMinKey() string  { return s.namespace + dateMinKey }
func (s *AggregateStore) dateMaxKey() string  { return s.namespace + dateMaxKey }

// Upsert stores record, replacing any earlier record with the same id, counts
// it and widens the date bounds. The record and the statistics are written
// as one batch. Dates compare lexically, which is correct for the
// fixed-width YYYY-MM-DD form.
func (s *AggregateStore) Upsert(ctx context.Context, record types.OrderRecord) error {
	if record.Items == nil {
		record.Items = []types.LineItem{}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", record.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := map[string]string{s.OrderKey(record.ID): string(data)}
	if err := s.addCount(ctx, batch); err != nil {
		return err
	}
	if err := s.addDates(ctx, batch, record.Date); err != nil {
		return err
	}
	if err := s.kv.SetMany(ctx, batch); err != nil {
		return fmt.Errorf("failed to store order %s: %w", record.ID, err)
	}
	return nil
}

// IncrementCancelled counts an order that produced no record.
func (s *AggregateStore) IncrementCancelled(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := map[string]string{}
	if err := s.addCount(ctx, batch); err != nil {
		return err
	}
	if err := s.kv.SetMany(ctx, batch); err != nil {
		return fmt.Errorf("failed to store order count: %w", err)
	}
	return nil
}

// addCount puts the incremented order count into batch.
func (s *AggregateStore) addCount(ctx context.Context, batch map[string]string) error {
	count, err := s.readCount(ctx)
	if err != nil {
		return err
	}
	batch[s.countKey()] = strconv.Itoa(count + 1)
	return nil
}

func (s *AggregateStore) readCount(ctx context.Context) (int, error) {
	raw, ok, err := s.kv.Get(ctx, s.countKey())
	if err != nil {
		return 0, fmt.Errorf("failed to read order count: %w", err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt order count %q: %w", raw, err)
	}
	return count, nil
}

// addDates puts whichever date bounds date widens into batch.
func (s *AggregateStore) addDates(ctx context.Context, batch map[string]string, date string) error {
	minDate, hasMin, err := s.kv.Get(ctx, s.dateMinKey())
	if err != nil {
		return fmt.Errorf("failed to read min date: %w", err)
	}
	maxDate, hasMax, err := s.kv.Get(ctx, s.dateMaxKey())
	if err != nil {
		return fmt.Errorf("failed to read max date: %w", err)
	}

	if !hasMin || minDate == "" || date < minDate {
		batch[s.dateMinKey()] = date
	}
	if !hasMax || maxDate == "" || date > maxDate {
		batch[s.dateMaxKey()] = date
	}
	return nil
}

// Get returns the record stored for id.
func (s *AggregateStore) Get(ctx context.Context, id string) (types.OrderRecord, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.OrderKey(id))
	if err != nil || !ok {
		return types.OrderRecord{}, false, err
	}
	record, err := decodeRecord(raw)
	if err != nil {
		return types.OrderRecord{}, false, fmt.Errorf("order %s: %w", id, err)
	}
	return record, true, nil
}

// All returns every stored record, in no particular order.
func (s *AggregateStore) All(ctx context.Context) ([]types.OrderRecord, error) {
	keys, err := s.kv.Keys(ctx, s.orderPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	records := []types.OrderRecord{}
	for _, key := range keys {
		raw, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !ok {
			// removed between Keys and Get
			continue
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Stats returns the aggregate statistics.
func (s *AggregateStore) Stats(ctx context.Context) (types.AggregateStats, error) {
	count, err := s.readCount(ctx)
	if err != nil {
		return types.AggregateStats{}, err
	}
	minDate, _, err := s.kv.Get(ctx, s.dateMinKey())
	if err != nil {
		return types.AggregateStats{}, fmt.Errorf("failed to read min date: %w", err)
	}
	maxDate, _, err := s.kv.Get(ctx, s.dateMaxKey())
	if err != nil {
		return types.AggregateStats{}, fmt.Errorf("failed to read max date: %w", err)
	}
	return types.AggregateStats{OrderCount: count, MinDate: minDate, MaxDate: maxDate}, nil
}

// Reset removes every record and statistic owned by this store and returns
// how many keys were deleted. Keys outside the namespace are left alone.
func (s *AggregateStore) Reset(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.kv.Keys(ctx, s.namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	owned := map[string]bool{s.countKey(): true, s.dateMinKey(): true, s.dateMaxKey(): true}
	prefix := s.orderPrefix()

	removed := 0
	for _, key := range keys {
		if !owned[key] && !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.kv.Remove(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

func decodeRecord(raw string) (types.OrderRecord, error) {
	var record types.OrderRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return types.OrderRecord{}, fmt.Errorf("corrupt order record: %w", err)
	}
	return record, nil
}
