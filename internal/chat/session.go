package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/gateway"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/upload"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"go.uber.org/zap"
)

// Greeting opens every new conversation.
const Greeting = "Hello! I am your AI Pharmacist. How can I help you today?"

// UploadFallback is the assistant turn shown when the prescription upload
// fails at the transport level.
const UploadFallback = "Failed to upload prescription."

// Session owns the ordered message transcript and the single-flight request
// discipline for text submission: at most one chat request is outstanding at
// a time, so assistant replies always land in submission order.
//
// Image uploads deliberately do not share that lane.  An uploaded
// prescription is an independent conversational turn and is always accepted,
// even while a text reply is pending; its preview and analysis messages are
// appended as they resolve.
type Session struct {
	gw       gateway.Client
	pipeline *upload.Pipeline
	threadID string
	logger   *zap.Logger

	mu       sync.Mutex
	messages []pkg.Message
	inFlight bool
	onChange func()
}

// NewSession creates a session seeded with the assistant greeting.  threadID
// keys the remote conversation memory; empty means the gateway default.
func NewSession(gw gateway.Client, threadID string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		gw:       gw,
		pipeline: upload.NewPipeline(gw, logger),
		threadID: threadID,
		logger:   logger,
		messages: []pkg.Message{{Role: pkg.RoleAssistant, Kind: pkg.MessageText, Content: Greeting}},
	}
}

// OnChange registers a callback fired after every transcript change.  Must
// be set before the first submission.
func (s *Session) OnChange(fn func()) { s.onChange = fn }

// Messages returns a copy of the transcript in display order.
func (s *Session) Messages() []pkg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pkg.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pending reports whether a text submission is awaiting its reply.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// SubmitText submits one user turn.  Rejected (returns false, no state
// change) when the text is empty after trimming or another text submission
// is still pending.  On acceptance the user message is appended immediately
// and the assistant reply is appended when it arrives.
func (s *Session) SubmitText(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.inFlight = true
	s.messages = append(s.messages, pkg.Message{Role: pkg.RoleUser, Kind: pkg.MessageText, Content: text})
	s.mu.Unlock()
	s.notify()

	go func() {
		reply := s.gw.Chat(ctx, text, s.threadID)
		s.mu.Lock()
		s.messages = append(s.messages, pkg.Message{Role: pkg.RoleAssistant, Kind: pkg.MessageText, Content: reply})
		s.inFlight = false
		s.mu.Unlock()
		s.notify()
	}()
	return true
}

// SubmitImage submits a prescription image.  The local preview is appended
// as a user turn as soon as it renders; exactly one assistant turn follows
// when the analysis resolves.
func (s *Session) SubmitImage(ctx context.Context, filename string, data []byte) {
	s.pipeline.Run(ctx, filename, data,
		func(uri string) {
			s.append(pkg.Message{Role: pkg.RoleUser, Kind: pkg.MessageImage, Content: uri})
		},
		func(res pkg.PrescriptionResult, err error) {
			s.append(pkg.Message{Role: pkg.RoleAssistant, Kind: pkg.MessageText, Content: FormatPrescription(res, err)})
		})
}

func (s *Session) append(m pkg.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// FormatPrescription derives the assistant turn for an upload outcome.
// Priority: structured extraction, then salvaged raw text, then the server's
// error text, then the generic transport fallback.  The three server shapes
// are mutually exclusive and exhaustive.
func FormatPrescription(res pkg.PrescriptionResult, err error) string {
	if err != nil {
		return UploadFallback
	}
	switch res.Kind() {
	case pkg.PrescriptionStructured:
		var b strings.Builder
		b.WriteString("Prescription received.\n")
		fmt.Fprintf(&b, "Medicine: %s\n", res.MedicineName)
		fmt.Fprintf(&b, "Dosage: %s\n", res.Dosage)
		fmt.Fprintf(&b, "Quantity: %s", res.Quantity)
		if res.Instructions != "" {
			fmt.Fprintf(&b, "\nInstructions: %s", res.Instructions)
		}
		return b.String()
	case pkg.PrescriptionRawText:
		return "Extracted text: " + res.RawText
	default:
		if res.Error != "" {
			return res.Error
		}
		return UploadFallback
	}
}
