package page

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/metrics"
	"github.com/kailas-cloud/zonemap/internal/usecase/query"
)

// ManagerConfig bounds the number and lifetime of pages.
type ManagerConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxPages      int // 0 = unlimited
}

// Manager keeps one Controller per browser page.
type Manager struct {
	features FeatureSource
	client   query.Client
	page     Config
	cfg      ManagerConfig
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	pages map[string]*Controller
}

// NewManager creates an empty page registry.
func NewManager(
	features FeatureSource, client query.Client,
	page Config, cfg ManagerConfig, logger *zap.Logger,
) *Manager {
	return &Manager{
		features: features,
		client:   client,
		page:     page,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		pages:    make(map[string]*Controller),
	}
}

// Create opens a new page and returns its id.
func (m *Manager) Create() (string, *Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxPages > 0 && len(m.pages) >= m.cfg.MaxPages {
		return "", nil, domain.ErrTooManyPages
	}

	id := uuid.NewString()
	c := NewController(m.features, m.client, m.page, m.logger.With(zap.String("page_id", id)))
	c.now = m.now
	c.lastSeen = m.now()
	m.pages[id] = c
	metrics.PagesActive.Set(float64(len(m.pages)))

	m.logger.Debug("Page created", zap.String("page_id", id))
	return id, c, nil
}

// Get returns a live page and marks it as seen.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	c, ok := m.pages[id]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, domain.ErrPageNotFound)
	}
	c.touch()
	return c, nil
}

// Delete tears a page down.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	c, ok := m.pages[id]
	if ok {
		delete(m.pages, id)
		metrics.PagesActive.Set(float64(len(m.pages)))
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("page %s: %w", id, domain.ErrPageNotFound)
	}
	c.Close()
	m.logger.Debug("Page deleted", zap.String("page_id", id))
	return nil
}

// Len returns the number of live pages.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// Sweep closes pages idle longer than IdleTTL and returns how many it removed.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	var stale []*Controller
	m.mu.Lock()
	for id, c := range m.pages {
		if c.LastSeen().Before(cutoff) {
			stale = append(stale, c)
			delete(m.pages, id)
		}
	}
	metrics.PagesActive.Set(float64(len(m.pages)))
	m.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	if len(stale) > 0 {
		m.logger.Info("Idle pages evicted", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps idle pages every SweepInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.cfg.SweepInterval <= 0 || m.cfg.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll tears every page down, cancelling in-flight queries.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pages := m.pages
	m.pages = make(map[string]*Controller)
	metrics.PagesActive.Set(0)
	m.mu.Unlock()

	for _, c := range pages {
		c.Close()
	}
}
