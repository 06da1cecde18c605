package ecoflux

import (
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Releasable is anything holding Arrow-backed memory that must be given back.
// Tables, TimeSeries and the series built by NewSeries all implement it; the
// usual pattern is a defer right after the value is obtained:
//
//	table, err := ecoflux.ReadCSVFile("site.csv", mem)
//	if err != nil {
//		return err
//	}
//	defer table.Release()
type Releasable interface {
	Release()
}

// MemoryManager collects resources and releases them in one call. It suits
// preparation runs that build many short-lived tables, such as one filled
// frame per gap-fill pair before the final concat; for a handful of values,
// plain defers read better.
//
// A MemoryManager may be shared between goroutines.
//
//	err := ecoflux.WithMemoryManager(mem, func(manager *ecoflux.MemoryManager) error {
//		for _, pair := range pairs {
//			result, err := ecoflux.FillGaps(table, pair.Target, pair.Source)
//			if err != nil {
//				return err
//			}
//			manager.Track(result.Table)
//		}
//		return nil
//	})
type MemoryManager struct {
	allocator memory.Allocator
	resources []Releasable
	mu        sync.Mutex
}

// NewMemoryManager returns an empty manager bound to the allocator.
func NewMemoryManager(allocator memory.Allocator) *MemoryManager {
	return &MemoryManager{allocator: allocator}
}

// Track registers a resource for release. Nil resources are ignored, so the
// result of a lookup can be tracked without a guard.
func (m *MemoryManager) Track(resource Releasable) {
	if resource == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, resource)
}

// Count reports how many resources are currently tracked.
func (m *MemoryManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

// ReleaseAll releases every tracked resource, newest first, and empties the
// manager. Calling it again is a no-op until more resources are tracked.
func (m *MemoryManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.resources) - 1; i >= 0; i-- {
		m.resources[i].Release()
	}
	m.resources = m.resources[:0]
}

// WithTable runs fn against the table produced by factory and releases the
// table afterwards. A factory error is returned as is and fn never runs.
//
//	err := ecoflux.WithTable(func() (*ecoflux.Table, error) {
//		return ecoflux.ReadCSVFile("site.csv", mem)
//	}, func(table *ecoflux.Table) error {
//		result, err := ecoflux.Resample(table, "1D", ecoflux.DefaultRules())
//		if err != nil {
//			return err
//		}
//		defer result.Table.Release()
//		return ecoflux.WriteCSVFile("site_daily.csv", result.Table)
//	})
func WithTable(factory func() (*Table, error), fn func(*Table) error) error {
	table, err := factory()
	if err != nil {
		return err
	}
	defer table.Release()
	return fn(table)
}

// WithSeries runs fn against the series produced by factory and releases the
// series afterwards.
func WithSeries(factory func() ISeries, fn func(ISeries) error) error {
	s := factory()
	defer s.Release()
	return fn(s)
}

// WithMemoryManager runs fn with a fresh manager and releases everything the
// manager tracked once fn returns, whether or not it returned an error.
func WithMemoryManager(allocator memory.Allocator, fn func(*MemoryManager) error) error {
	manager := NewMemoryManager(allocator)
	defer manager.ReleaseAll()
	return fn(manager)
}
