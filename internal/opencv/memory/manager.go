package memory

import (
	"sync"

	"framecull/internal/logger"
	"framecull/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Manager tracks every safe.Mat created against it and recycles
// fixed-shape scratch buffers (the preprocessed grayscale frames).
type Manager struct {
	pools   map[PoolKey]*Pool
	poolCap int
	mu      sync.Mutex

	statsMu sync.Mutex
	live    map[uint64]int64
	stats   Stats

	logger logger.Logger
}

type PoolKey struct {
	Rows    int
	Cols    int
	MatType gocv.MatType
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	ActiveBytes    int64
	PeakBytes      int64
	PoolHits       int64
	PoolMisses     int64
}

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		pools:   make(map[PoolKey]*Pool),
		poolCap: 4,
		live:    make(map[uint64]int64),
		logger:  log,
	}
}

// TrackAllocation implements safe.MemoryTracker.
func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	m.live[id] = size
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++
	m.stats.ActiveBytes += size
	if m.stats.ActiveBytes > m.stats.PeakBytes {
		m.stats.PeakBytes = m.stats.ActiveBytes
	}
}

// TrackDeallocation implements safe.MemoryTracker.
func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	size, ok := m.live[id]
	if !ok {
		return
	}
	delete(m.live, id)
	m.stats.TotalReleased += size
	m.stats.ActiveMats--
	m.stats.ActiveBytes -= size
}

// GetMat returns a pooled buffer of the requested shape or allocates one.
// The content of a pooled buffer is undefined.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType) (*safe.Mat, error) {
	key := PoolKey{Rows: rows, Cols: cols, MatType: matType}

	m.mu.Lock()
	pool, exists := m.pools[key]
	m.mu.Unlock()

	if exists {
		if mat := pool.Get(); mat != nil {
			m.countPool(true)
			return mat, nil
		}
	}

	m.countPool(false)
	return safe.NewMatWithTracker(rows, cols, matType, m, "pooled")
}

// ReleaseMat hands a buffer back to its pool, closing it when the pool is full.
func (m *Manager) ReleaseMat(mat *safe.Mat) {
	if mat == nil || !mat.IsValid() {
		return
	}

	key := PoolKey{
		Rows:    mat.Rows(),
		Cols:    mat.Cols(),
		MatType: mat.Type(),
	}

	m.mu.Lock()
	pool, exists := m.pools[key]
	if !exists {
		pool = NewPool(m.poolCap)
		m.pools[key] = pool
	}
	m.mu.Unlock()

	if pool.Put(mat) {
		return
	}
	mat.Close()
}

// Tracker exposes the manager as the tracker handed to frame sources.
func (m *Manager) Tracker() safe.MemoryTracker {
	return m
}

func (m *Manager) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// Cleanup closes every pooled buffer. Mats still owned elsewhere are
// reported, not closed.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	pooled := 0
	for key, pool := range m.pools {
		pooled += pool.Cleanup()
		delete(m.pools, key)
	}
	m.mu.Unlock()

	stats := m.GetStats()
	fields := map[string]interface{}{
		"pooled_closed": pooled,
		"active_mats":   stats.ActiveMats,
		"peak_mb":       float64(stats.PeakBytes) / (1024 * 1024),
		"pool_hits":     stats.PoolHits,
		"pool_misses":   stats.PoolMisses,
	}
	if stats.ActiveMats > 0 {
		m.logger.Warning("MemoryManager", "mats still active after cleanup", fields)
		return
	}
	m.logger.Debug("MemoryManager", "cleanup complete", fields)
}

// Shutdown satisfies shutdown.Shutdownable.
func (m *Manager) Shutdown() {
	m.Cleanup()
}

func (m *Manager) countPool(hit bool) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	if hit {
		m.stats.PoolHits++
	} else {
		m.stats.PoolMisses++
	}
}
