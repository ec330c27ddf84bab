package algorithms

import (
	"fmt"
	"sort"
	"sync"

	"framecull/internal/algorithms/framediff"
	"framecull/internal/algorithms/opticalflow"
	"framecull/internal/algorithms/ssim"
	"framecull/internal/models"
)

// Factory builds a detector from the sub-structure of params it owns.
type Factory func(params models.ProcessingParameters) ChangeDetector

type Manager struct {
	factories map[models.AlgorithmKind]Factory
	mu        sync.RWMutex
}

func NewManager() *Manager {
	manager := &Manager{
		factories: make(map[models.AlgorithmKind]Factory),
	}

	manager.registerAlgorithms()

	return manager
}

func (m *Manager) registerAlgorithms() {
	m.Register(models.FrameDifference, func(p models.ProcessingParameters) ChangeDetector {
		return framediff.NewDetector(p.FrameDiff)
	})
	m.Register(models.StructuralSimilarity, func(p models.ProcessingParameters) ChangeDetector {
		return ssim.NewDetector(p.SSIM)
	})
	m.Register(models.OpticalFlow, func(p models.ProcessingParameters) ChangeDetector {
		return opticalflow.NewDetector(p.Flow)
	})
}

func (m *Manager) Register(kind models.AlgorithmKind, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[kind] = factory
}

// Create validates the parameters read by kind and builds its detector.
// Blur sizes are normalized first.
func (m *Manager) Create(kind models.AlgorithmKind, params models.ProcessingParameters) (ChangeDetector, error) {
	m.mu.RLock()
	factory, exists := m.factories[kind]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownAlgorithm, kind)
	}

	params = params.Normalized()
	if err := params.Validate(kind); err != nil {
		return nil, fmt.Errorf("invalid %s parameters: %w", kind, err)
	}

	return factory(params), nil
}

func (m *Manager) GetAvailableAlgorithms() []models.AlgorithmKind {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]models.AlgorithmKind, 0, len(m.factories))
	for kind := range m.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}
