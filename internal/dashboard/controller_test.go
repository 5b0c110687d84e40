package dashboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/dashboard"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu           sync.Mutex
	inventory    []pkg.InventoryItem
	history      []pkg.OrderRecord
	alerts       []string
	patients     []pkg.Patient
	patientCalls int
}

func (f *fakeGateway) Chat(ctx context.Context, message, threadID string) string { return "" }

func (f *fakeGateway) ListInventory(ctx context.Context) ([]pkg.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inventory, nil
}

func (f *fakeGateway) ListOrderHistory(ctx context.Context) ([]pkg.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeGateway) ListAlerts(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts, nil
}

func (f *fakeGateway) ListPatients(ctx context.Context) ([]pkg.Patient, error) {
	f.mu.Lock()
	f.patientCalls++
	f.mu.Unlock()
	return f.patients, nil
}

func (f *fakeGateway) patientCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patientCalls
}

func (f *fakeGateway) UploadPrescription(ctx context.Context, filename string, data []byte) (pkg.PrescriptionResult, error) {
	return pkg.PrescriptionResult{}, nil
}

func TestMetrics_TotalInventoryValue(t *testing.T) {
	gw := &fakeGateway{inventory: []pkg.InventoryItem{
		{ID: 1, Name: "Paracetamol", Stock: 10, Price: 2.5},
		{ID: 2, Name: "Aspirin", Stock: 4}, // no price reported
	}}
	c := dashboard.NewController(gw, time.Hour, zap.NewNop())
	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool {
		return c.Metrics().TotalInventoryValue == 25.0
	}, time.Second, time.Millisecond)
}

func TestLowStock_Boundary(t *testing.T) {
	assert.Equal(t, 20, dashboard.LowStockThreshold)
	assert.True(t, dashboard.LowStock(19))
	assert.False(t, dashboard.LowStock(20), "stock equal to the threshold is not low")
	assert.False(t, dashboard.LowStock(21))
}

func TestPatients_FetchedLazilyAndOnce(t *testing.T) {
	gw := &fakeGateway{patients: []pkg.Patient{{ID: 1, Name: "User1"}}}
	c := dashboard.NewController(gw, time.Hour, zap.NewNop())
	c.Start(context.Background())
	defer c.Stop()

	// Polled views load; the roster stays dormant until its tab is active.
	require.Eventually(t, func() bool {
		_, ok := c.Inventory.Snapshot()
		return ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, gw.patientCallCount())

	c.SelectTab(dashboard.TabPatients)
	assert.Equal(t, dashboard.TabPatients, c.ActiveTab())
	require.Eventually(t, func() bool {
		_, ok := c.Patients.Snapshot()
		return ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, gw.patientCallCount())

	// Re-selecting never refetches.
	c.SelectTab(dashboard.TabInventory)
	c.SelectTab(dashboard.TabPatients)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, gw.patientCallCount())
}

func TestSelectTab_IsClientLocal(t *testing.T) {
	gw := &fakeGateway{}
	c := dashboard.NewController(gw, time.Hour, zap.NewNop())

	assert.Equal(t, dashboard.TabInventory, c.ActiveTab())
	c.SelectTab(dashboard.TabAlerts)
	assert.Equal(t, dashboard.TabAlerts, c.ActiveTab())
	// Not started: no poller activity, and no roster fetch either.
	c.SelectTab(dashboard.TabPatients)
	assert.Equal(t, 0, gw.patientCallCount())
}

func TestMetricsAggregator_RecomputesOnEverySnapshot(t *testing.T) {
	a := dashboard.NewMetricsAggregator()
	a.Update([]pkg.InventoryItem{{Stock: 10, Price: 2.5}, {Stock: 4, Price: 0}})
	assert.Equal(t, 25.0, a.Current().TotalInventoryValue)

	a.Update([]pkg.InventoryItem{{Stock: 2, Price: 1.5}})
	assert.Equal(t, 3.0, a.Current().TotalInventoryValue)

	a.Update(nil)
	assert.Equal(t, 0.0, a.Current().TotalInventoryValue)
}
