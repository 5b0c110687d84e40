package upload_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/upload"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	uploadGate chan struct{}
	uploadRes  pkg.PrescriptionResult
	uploadErr  error
}

func (f *fakeGateway) Chat(ctx context.Context, message, threadID string) string { return "" }
func (f *fakeGateway) ListInventory(ctx context.Context) ([]pkg.InventoryItem, error) {
	return nil, nil
}
func (f *fakeGateway) ListOrderHistory(ctx context.Context) ([]pkg.OrderRecord, error) {
	return nil, nil
}
func (f *fakeGateway) ListAlerts(ctx context.Context) ([]string, error)        { return nil, nil }
func (f *fakeGateway) ListPatients(ctx context.Context) ([]pkg.Patient, error) { return nil, nil }

func (f *fakeGateway) UploadPrescription(ctx context.Context, filename string, data []byte) (pkg.PrescriptionResult, error) {
	if f.uploadGate != nil {
		<-f.uploadGate
	}
	return f.uploadRes, f.uploadErr
}

func TestPreviewDataURI(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	uri, err := upload.PreviewDataURI("rx.png", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestPreviewDataURI_EmptyFile(t *testing.T) {
	_, err := upload.PreviewDataURI("rx.png", nil)
	require.Error(t, err)
}

func TestRun_PreviewPublishesBeforeSlowUpload(t *testing.T) {
	gw := &fakeGateway{
		uploadGate: make(chan struct{}),
		uploadRes:  pkg.PrescriptionResult{MedicineName: "Aspirin"},
	}
	p := upload.NewPipeline(gw, zap.NewNop())

	previews := make(chan string, 1)
	results := make(chan pkg.PrescriptionResult, 1)
	p.Run(context.Background(), "rx.png", []byte{1, 2, 3},
		func(uri string) { previews <- uri },
		func(res pkg.PrescriptionResult, err error) {
			require.NoError(t, err)
			results <- res
		})

	// The local leg completes while the network leg is still held open.
	select {
	case uri := <-previews:
		assert.True(t, strings.HasPrefix(uri, "data:"))
	case <-time.After(time.Second):
		t.Fatal("preview never published")
	}
	select {
	case <-results:
		t.Fatal("upload resolved before the gate was released")
	default:
	}

	close(gw.uploadGate)
	select {
	case res := <-results:
		assert.Equal(t, "Aspirin", res.MedicineName)
	case <-time.After(time.Second):
		t.Fatal("upload result never published")
	}
}

func TestRun_CancelledContextSuppressesCallbacks(t *testing.T) {
	gw := &fakeGateway{uploadGate: make(chan struct{})}
	p := upload.NewPipeline(gw, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan pkg.PrescriptionResult, 1)
	p.Run(ctx, "rx.png", []byte{1}, nil, func(res pkg.PrescriptionResult, err error) {
		results <- res
	})

	cancel()
	close(gw.uploadGate)
	select {
	case <-results:
		t.Fatal("result delivered after cancellation")
	case <-time.After(100 * time.Millisecond):
	}
}
