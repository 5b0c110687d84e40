package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"go.uber.org/zap"
)

// ChatFallback is shown in the transcript when the agent cannot be reached.
// Chat never propagates a transport error; the conversation must always have
// an assistant turn to display.
const ChatFallback = "Error communicating with the pharmacy agent."

// DefaultThreadID is used when the caller does not supply a chat thread.
const DefaultThreadID = "default_thread"

// Client is the typed boundary to the remote pharmacy service.  One method
// per remote capability; expected failure modes come back as values or
// errors, never panics.
type Client interface {
	Chat(ctx context.Context, message, threadID string) string
	ListInventory(ctx context.Context) ([]pkg.InventoryItem, error)
	ListOrderHistory(ctx context.Context) ([]pkg.OrderRecord, error)
	ListAlerts(ctx context.Context) ([]string, error)
	ListPatients(ctx context.Context) ([]pkg.Patient, error)
	UploadPrescription(ctx context.Context, filename string, data []byte) (pkg.PrescriptionResult, error)
}

// HTTPClient talks JSON over HTTP to the pharmacy service.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a client for the given base endpoint, e.g.
// "http://localhost:8000".
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type alertsResponse struct {
	Alerts []string `json:"alerts"`
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	// Tunnels such as ngrok interpose an interstitial page unless told not to.
	req.Header.Set("ngrok-skip-browser-warning", "true")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Chat sends one user message on the given thread and returns the agent's
// reply.  On any transport or decode failure it returns ChatFallback.
func (c *HTTPClient) Chat(ctx context.Context, message, threadID string) string {
	if threadID == "" {
		threadID = DefaultThreadID
	}
	payload, err := json.Marshal(chatRequest{Message: message, ThreadID: threadID})
	if err != nil {
		return ChatFallback
	}
	var out chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", "application/json", bytes.NewReader(payload), &out); err != nil {
		c.logger.Warn("chat request failed", zap.Error(err))
		return ChatFallback
	}
	return out.Response
}

// ListInventory fetches the current inventory snapshot.
func (c *HTTPClient) ListInventory(ctx context.Context) ([]pkg.InventoryItem, error) {
	var items []pkg.InventoryItem
	if err := c.do(ctx, http.MethodGet, "/inventory", "", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOrderHistory fetches the full order history, newest first.
func (c *HTTPClient) ListOrderHistory(ctx context.Context) ([]pkg.OrderRecord, error) {
	var records []pkg.OrderRecord
	if err := c.do(ctx, http.MethodGet, "/history", "", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListAlerts fetches the operational alerts computed by the remote side.
func (c *HTTPClient) ListAlerts(ctx context.Context) ([]string, error) {
	var out alertsResponse
	if err := c.do(ctx, http.MethodGet, "/alerts", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}

// ListPatients fetches the patient roster.
func (c *HTTPClient) ListPatients(ctx context.Context) ([]pkg.Patient, error) {
	var patients []pkg.Patient
	if err := c.do(ctx, http.MethodGet, "/patients", "", nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// UploadPrescription sends the raw image bytes as a multipart form and
// returns the tagged extraction result.  A transport failure is returned as
// an error; the caller decides the user-facing fallback.
func (c *HTTPClient) UploadPrescription(ctx context.Context, filename string, data []byte) (pkg.PrescriptionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return pkg.PrescriptionResult{}, err
	}
	if _, err := part.Write(data); err != nil {
		return pkg.PrescriptionResult{}, err
	}
	if err := mw.Close(); err != nil {
		return pkg.PrescriptionResult{}, err
	}
	var res pkg.PrescriptionResult
	if err := c.do(ctx, http.MethodPost, "/upload-prescription", mw.FormDataContentType(), &buf, &res); err != nil {
		c.logger.Warn("prescription upload failed", zap.Error(err))
		return pkg.PrescriptionResult{}, err
	}
	return res, nil
}
