package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/internal/pkg/auditexport"
	"github.com/sellora/sellora/internal/pkg/billing"
	"github.com/sellora/sellora/internal/pkg/env"
	"github.com/sellora/sellora/internal/pkg/usage"
	"gorm.io/gorm"
)

// Manager drives the periodic billing sweeps: usage metering for every
// seller, expiry of elapsed grace periods, and the audit export.
type Manager struct {
	meter    *usage.Meter
	usageRep usage.Repository
	grace    *billing.GracePeriodController
	exporter *auditexport.Exporter

	usageTicker  *time.Ticker
	graceTicker  *time.Ticker
	exportTicker *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global sweep manager (singleton).
func GetManager(db *gorm.DB, meter *usage.Meter, grace *billing.GracePeriodController, exporter *auditexport.Exporter) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			meter:    meter,
			usageRep: usage.NewRepository(db),
			grace:    grace,
			exporter: exporter,
			stopCh:   make(chan struct{}),
		}
	})
	return globalManager
}

// NewManager creates an unshared manager, mainly for tests.
func NewManager(meter *usage.Meter, usageRepo usage.Repository, grace *billing.GracePeriodController, exporter *auditexport.Exporter) *Manager {
	return &Manager{
		meter:    meter,
		usageRep: usageRepo,
		grace:    grace,
		exporter: exporter,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the background sweep workers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Sweep] Starting billing sweep workers")

	usageInterval := envDurationMinutes("SWEEP_USAGE_INTERVAL_MIN", 15)
	graceInterval := envDurationMinutes("SWEEP_GRACE_INTERVAL_MIN", 10)
	exportInterval := envDurationMinutes("SWEEP_EXPORT_INTERVAL_MIN", 60)

	m.usageTicker = time.NewTicker(usageInterval)
	m.wg.Add(1)
	go m.usageWorker()

	m.graceTicker = time.NewTicker(graceInterval)
	m.wg.Add(1)
	go m.graceWorker()

	if m.exporter != nil && m.exporter.Enabled() {
		m.exportTicker = time.NewTicker(exportInterval)
		m.wg.Add(1)
		go m.exportWorker()
	}

	log.Info("[Sweep] Started successfully")
}

// Stop stops the sweep workers and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Sweep] Stopping billing sweep workers...")

	if m.usageTicker != nil {
		m.usageTicker.Stop()
	}
	if m.graceTicker != nil {
		m.graceTicker.Stop()
	}
	if m.exportTicker != nil {
		m.exportTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[Sweep] Stopped successfully")
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) usageWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweep] Usage worker stopping")
			return
		case <-m.usageTicker.C:
			log.Debug("[Sweep] Running usage metering pass")
			if err := m.RunUsagePass(); err != nil {
				log.Errorf("[Sweep] Usage pass error: %v", err)
			}
		}
	}
}

func (m *Manager) graceWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweep] Grace worker stopping")
			return
		case <-m.graceTicker.C:
			log.Debug("[Sweep] Running grace expiry pass")
			if err := m.RunGracePass(context.Background()); err != nil {
				log.Errorf("[Sweep] Grace pass error: %v", err)
			}
		}
	}
}

func (m *Manager) exportWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Sweep] Export worker stopping")
			return
		case <-m.exportTicker.C:
			if err := m.exporter.ExportClosedMonths(context.Background()); err != nil {
				log.Errorf("[Sweep] Audit export error: %v", err)
			}
		}
	}
}

// RunUsagePass meters every active seller once. A failing seller is logged
// and does not abort the pass.
func (m *Manager) RunUsagePass() error {
	ids, err := m.usageRep.ListActiveSellerIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := m.meter.RecordUsageAndCheckLimits(id); err != nil {
			log.Errorf("[Sweep] Usage metering failed for seller %d: %v", id, err)
		}
	}
	return nil
}

// RunGracePass ends every grace period that elapsed without a payment
// success.
func (m *Manager) RunGracePass(ctx context.Context) error {
	ids, err := m.grace.ListExpired(time.Now())
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := m.grace.End(ctx, id); err != nil {
			log.Errorf("[Sweep] Grace expiry failed for seller %d: %v", id, err)
		}
	}
	return nil
}

func envDurationMinutes(key string, def int) time.Duration {
	v := env.GetEnv(key, "")
	if v == "" {
		return time.Duration(def) * time.Minute
	}
	d, err := time.ParseDuration(v + "m")
	if err != nil || d <= 0 {
		return time.Duration(def) * time.Minute
	}
	return d
}
