package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ReportSchedulesKey caches the schedule list.
const ReportSchedulesKey = "reportSchedules"

type QueryFunc func(ctx context.Context) (interface{}, error)

type query struct {
	fn    QueryFunc
	data  interface{}
	err   error
	count int
}

// QueryCache keeps the last result of each keyed query and can re-run them on demand.
type QueryCache struct {
	mutex   sync.Mutex
	queries map[string]*query
}

func NewQueryCache() *QueryCache {
	return &QueryCache{queries: make(map[string]*query)}
}

// Fetch runs fn, stores its result under key and remembers fn for later refetches.
func (q *QueryCache) Fetch(ctx context.Context, key string, fn QueryFunc) (interface{}, error) {
	q.mutex.Lock()
	entry, ok := q.queries[key]
	if !ok {
		entry = &query{}
		q.queries[key] = entry
	}
	entry.fn = fn
	q.mutex.Unlock()

	return q.run(ctx, entry, fn)
}

func (q *QueryCache) run(ctx context.Context, entry *query, fn QueryFunc) (interface{}, error) {
	data, err := fn(ctx)

	q.mutex.Lock()
	defer q.mutex.Unlock()
	entry.count++
	entry.err = err
	if err == nil {
		entry.data = data
	}
	return data, err
}

// Get returns the last successful result for key.
func (q *QueryCache) Get(key string) (interface{}, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	entry, ok := q.queries[key]
	if !ok || entry.data == nil {
		return nil, false
	}
	return entry.data, true
}

// Runs reports how many times the query under key has executed.
func (q *QueryCache) Runs(key string) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if entry, ok := q.queries[key]; ok {
		return entry.count
	}
	return 0
}

// RefetchQueries re-runs the queries under keys. Keys that were never fetched
// are skipped.
func (q *QueryCache) RefetchQueries(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		q.mutex.Lock()
		entry, ok := q.queries[key]
		var fn QueryFunc
		if ok {
			fn = entry.fn
		}
		q.mutex.Unlock()

		if fn == nil {
			continue
		}
		if _, err := q.run(ctx, entry, fn); err != nil {
			errs = append(errs, fmt.Errorf("refetch %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
