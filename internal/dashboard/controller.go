package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/gateway"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/poll"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"go.uber.org/zap"
)

// DefaultPollInterval is the shared refresh cadence for the live views.
const DefaultPollInterval = 10 * time.Second

// LowStockThreshold marks inventory rows as low when stock drops below it.
// The boundary itself counts as in stock.
const LowStockThreshold = 20

// Tab identifies the active dashboard view.  Selection is client-local state
// with no network effect except the lazy patient roster fetch.
type Tab string

const (
	TabInventory Tab = "inventory"
	TabHistory   Tab = "history"
	TabAlerts    Tab = "alerts"
	TabPatients  Tab = "patients"
)

// Controller composes the dashboard's pollers.  Inventory, alerts and
// history refresh on a shared fixed cadence; the patient roster is fetched
// once, on demand, the first time its tab becomes active.  Every inventory
// publish feeds the metrics aggregator.
type Controller struct {
	Inventory *poll.Poller[[]pkg.InventoryItem]
	Alerts    *poll.Poller[[]string]
	History   *poll.Poller[[]pkg.OrderRecord]
	Patients  *poll.Poller[[]pkg.Patient]

	metrics *MetricsAggregator

	mu              sync.Mutex
	active          Tab
	patientsStarted bool
	runCtx          context.Context
}

// NewController wires four pollers against the gateway.  interval <= 0 uses
// DefaultPollInterval.
func NewController(gw gateway.Client, interval time.Duration, logger *zap.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		metrics: NewMetricsAggregator(),
		active:  TabInventory,
	}
	c.Inventory = poll.New(gw.ListInventory, interval, logger.Named("inventory"))
	c.Inventory.OnUpdate(func(items []pkg.InventoryItem) { c.metrics.Update(items) })
	c.Alerts = poll.New(gw.ListAlerts, interval, logger.Named("alerts"))
	c.History = poll.New(gw.ListOrderHistory, interval, logger.Named("history"))
	// interval 0: activate-once, never on a timer
	c.Patients = poll.New(gw.ListPatients, 0, logger.Named("patients"))
	return c
}

// Start activates the polled views.  The patient roster stays dormant until
// its tab is selected.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
	c.Inventory.Start(ctx)
	c.Alerts.Start(ctx)
	c.History.Start(ctx)
}

// Stop deactivates every poller.  Results of in-flight fetches are discarded
// on arrival.
func (c *Controller) Stop() {
	c.Inventory.Stop()
	c.Alerts.Stop()
	c.History.Stop()
	c.Patients.Stop()
}

// SelectTab switches the active view.  The first selection of the patients
// tab triggers its one-shot roster fetch; later selections do not refetch.
func (c *Controller) SelectTab(tab Tab) {
	c.mu.Lock()
	c.active = tab
	var startPatients bool
	var ctx context.Context
	if tab == TabPatients && !c.patientsStarted && c.runCtx != nil {
		c.patientsStarted = true
		startPatients = true
		ctx = c.runCtx
	}
	c.mu.Unlock()
	if startPatients {
		c.Patients.Start(ctx)
	}
}

// ActiveTab returns the currently selected view.
func (c *Controller) ActiveTab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Metrics returns the summary derived from the latest inventory snapshot.
func (c *Controller) Metrics() pkg.InventoryMetrics {
	return c.metrics.Current()
}

// LowStock reports whether a stock level counts as low.
func LowStock(stock int64) bool {
	return stock < LowStockThreshold
}
