package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/agent"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"go.uber.org/zap"
)

// alertsCacheKey and alertsCacheTTL bound how often the refill scan walks
// the whole order history.
const (
	alertsCacheKey = "pharmacy:alerts"
	alertsCacheTTL = 10 * time.Second
)

const maxUploadBytes = 10 << 20

// Store is the subset of the repository the read endpoints need.
type Store interface {
	ListInventory(ctx context.Context) ([]pkg.InventoryItem, error)
	ListHistory(ctx context.Context) ([]pkg.OrderRecord, error)
	ListPatients(ctx context.Context) ([]pkg.Patient, error)
}

// Assistant answers chat turns and computes the predictive alerts.
type Assistant interface {
	Respond(ctx context.Context, threadID, message string) string
	RefillAlerts(ctx context.Context) ([]string, error)
}

// Vision runs the OCR model over an uploaded prescription image.
type Vision interface {
	AnalyzeImage(ctx context.Context, prompt string, image []byte) (string, error)
}

// KV is a string cache with per-key TTL.  A miss is any non-nil error.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Store     Store
	Assistant Assistant
	Vision    Vision
	Cache     KV // optional; nil disables the alerts cache
	Logger    *zap.Logger
}

// NewServer constructs a Server.
func NewServer(st Store, as Assistant, vi Vision, cache KV, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Store: st, Assistant: as, Vision: vi, Cache: cache, Logger: logger}
}

// ServeHTTP dispatches incoming requests based on the URL path.  Minimal
// routing logic is implemented here to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The browser client may arrive from any origin, through tunnels that
	// add custom headers.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*, ngrok-skip-browser-warning")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		s.writeJSON(w, map[string]string{"message": "Agentic Pharmacy API is running"})
	case r.URL.Path == "/chat" && r.Method == http.MethodPost:
		s.handleChat(w, r)
	case r.URL.Path == "/inventory" && r.Method == http.MethodGet:
		s.handleInventory(w, r)
	case r.URL.Path == "/history" && r.Method == http.MethodGet:
		s.handleHistory(w, r)
	case r.URL.Path == "/alerts" && r.Method == http.MethodGet:
		s.handleAlerts(w, r)
	case r.URL.Path == "/patients" && r.Method == http.MethodGet:
		s.handlePatients(w, r)
	case r.URL.Path == "/upload-prescription" && r.Method == http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.NotFound(w, r)
	}
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = "default_thread"
	}
	reply := s.Assistant.Respond(r.Context(), req.ThreadID, req.Message)
	s.writeJSON(w, map[string]string{"response": reply})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListInventory(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []pkg.InventoryItem{}
	}
	s.writeJSON(w, items)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.Store.ListHistory(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []pkg.OrderRecord{}
	}
	s.writeJSON(w, records)
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.Store.ListPatients(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []pkg.Patient{}
	}
	s.writeJSON(w, patients)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.Cache != nil {
		if cached, err := s.Cache.Get(ctx, alertsCacheKey); err == nil {
			var alerts []string
			if err := json.Unmarshal([]byte(cached), &alerts); err == nil {
				s.writeJSON(w, map[string][]string{"alerts": alerts})
				return
			}
		}
	}
	alerts, err := s.Assistant.RefillAlerts(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []string{}
	}
	if s.Cache != nil {
		if encoded, err := json.Marshal(alerts); err == nil {
			if err := s.Cache.Set(ctx, alertsCacheKey, string(encoded), alertsCacheTTL); err != nil {
				s.Logger.Warn("alerts cache write failed", zap.Error(err))
			}
		}
	}
	s.writeJSON(w, map[string][]string{"alerts": alerts})
}

// jsonBlock grabs the outermost {...} from model output that may be wrapped
// in prose or markdown fences.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	raw, err := s.Vision.AnalyzeImage(r.Context(), agent.VisionPrompt, data)
	if err != nil {
		s.Logger.Warn("vision analysis failed", zap.Error(err))
		s.writeJSON(w, map[string]string{"error": "Failed to process image: " + err.Error()})
		return
	}

	// The model is told to return bare JSON but does not always comply.
	match := jsonBlock.FindString(raw)
	if match == "" {
		s.writeJSON(w, map[string]string{
			"raw_text": raw,
			"error":    "No JSON object found in response.",
		})
		return
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(match), &fields); err != nil {
		s.writeJSON(w, map[string]string{
			"raw_text": raw,
			"error":    "Found JSON-like block but failed to parse.",
		})
		return
	}
	s.writeJSON(w, fields)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("response encode failed", zap.Error(err))
	}
}
