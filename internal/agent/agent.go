package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/llm"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/store"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"go.uber.org/zap"
)

// historyCap bounds per-thread conversation memory sent to the model.
const historyCap = 20

// Store is the slice of the repository the agent needs for its tools.
type Store interface {
	SearchMedicines(ctx context.Context, name string) ([]store.Medicine, error)
	ListPatients(ctx context.Context) ([]pkg.Patient, error)
	FindPatient(ctx context.Context, ref string) (*pkg.Patient, error)
	PatientHistory(ctx context.Context, patient string) ([]pkg.OrderRecord, error)
	PlaceOrder(ctx context.Context, patient, medicineName string, qty int64) (*store.Medicine, error)
	LatestPurchases(ctx context.Context) ([]store.Purchase, error)
}

// Knowledge answers drug-safety queries from the reference corpus.
type Knowledge interface {
	Query(query string) string
}

// Agent orchestrates the pharmacy conversation.  Deterministic intents
// (placing an order, recalling purchase history) go straight to the store
// with the safety rules applied in code; everything else is delegated to the
// chat model with live stock context inlined.  Conversation memory is held
// in-process per thread.
type Agent struct {
	llm    llm.Client
	repo   Store
	kb     Knowledge // nil disables knowledge-base lookups
	logger *zap.Logger

	mu      sync.Mutex
	threads map[string]*thread
}

type thread struct {
	history []llm.Message
	pending *pendingOrder
}

// pendingOrder is an order waiting on the user's prescription confirmation.
type pendingOrder struct {
	patient  string
	medicine string
	qty      int64
}

func New(client llm.Client, repo Store, kb Knowledge, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: client, repo: repo, kb: kb, logger: logger, threads: map[string]*thread{}}
}

var (
	qtyPattern = regexp.MustCompile(`\b(\d+)\b`)
	// patientRefPattern matches explicit references like "patient 3" or
	// "patient id 3".
	patientRefPattern = regexp.MustCompile(`patient (?:id )?#?(\d+)`)
)

// Respond generates the assistant's reply for one user message on the given
// thread.  It never returns an empty string; failures degrade to Apology.
func (a *Agent) Respond(ctx context.Context, threadID, message string) string {
	t := a.thread(threadID)
	reply := a.respond(ctx, t, message)

	a.mu.Lock()
	t.history = append(t.history,
		llm.Message{Role: "user", Content: message},
		llm.Message{Role: "assistant", Content: reply})
	if len(t.history) > historyCap {
		t.history = t.history[len(t.history)-historyCap:]
	}
	a.mu.Unlock()
	return reply
}

func (a *Agent) thread(id string) *thread {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[id]
	if !ok {
		t = &thread{}
		a.threads[id] = t
	}
	return t
}

func (a *Agent) respond(ctx context.Context, t *thread, message string) string {
	lower := strings.ToLower(message)

	// A pending prescription-gated order resolves on a yes/no answer.
	a.mu.Lock()
	pending := t.pending
	a.mu.Unlock()
	if pending != nil {
		if isAffirmative(lower) {
			a.mu.Lock()
			t.pending = nil
			a.mu.Unlock()
			return a.placeOrder(ctx, pending.patient, pending.medicine, pending.qty)
		}
		if isNegative(lower) {
			a.mu.Lock()
			t.pending = nil
			a.mu.Unlock()
			return "Understood, I won't place that order. A valid prescription is required for that medicine."
		}
	}

	mentioned := a.mentionedMedicines(ctx, lower)
	patient := a.mentionedPatient(ctx, lower)

	if (strings.Contains(lower, "usually") || strings.Contains(lower, "history")) && patient != nil {
		return a.historySummary(ctx, patient)
	}

	if (strings.Contains(lower, "order") || strings.Contains(lower, "buy")) && len(mentioned) > 0 {
		med := mentioned[0]
		qty := int64(1)
		// An explicit "patient N" reference is an identifier, not a quantity.
		qtySrc := patientRefPattern.ReplaceAllString(lower, " ")
		if m := qtyPattern.FindString(qtySrc); m != "" {
			if v, err := strconv.ParseInt(m, 10, 64); err == nil && v > 0 {
				qty = v
			}
		}
		if patient == nil {
			return "I can place that order. Could you tell me your name or patient ID first?"
		}
		if blocked := allergyBlock(patient, med); blocked != "" {
			return blocked
		}
		if med.PrescriptionRequired {
			a.mu.Lock()
			t.pending = &pendingOrder{patient: patient.Name, medicine: med.Name, qty: qty}
			a.mu.Unlock()
			return fmt.Sprintf("%s requires a prescription. Do you have a valid prescription?", med.Name)
		}
		return a.placeOrder(ctx, patient.Name, med.Name, qty)
	}

	var reference string
	if a.kb != nil && isSafetyQuery(lower) {
		reference = a.kb.Query(message)
	}
	return a.chat(ctx, t, message, mentioned, reference)
}

// chat delegates to the model with live stock context for any medicines the
// user mentioned and, for safety questions, the matching reference sections.
func (a *Agent) chat(ctx context.Context, t *thread, message string, mentioned []store.Medicine, reference string) string {
	system := SystemPrompt
	if len(mentioned) > 0 {
		var b strings.Builder
		b.WriteString("\n\nCURRENT STOCK:\n")
		for _, m := range mentioned {
			fmt.Fprintf(&b, "- %s: %d %s available. Dosage: %s. Prescription Required: %t. Price: $%.2f\n",
				m.Name, m.Stock, m.Unit, m.Dosage, m.PrescriptionRequired, m.Price)
		}
		system += b.String()
	}
	if reference != "" {
		system += "\n\nKNOWLEDGE BASE:\n" + reference
	}

	a.mu.Lock()
	msgs := make([]llm.Message, 0, len(t.history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: system})
	msgs = append(msgs, t.history...)
	a.mu.Unlock()
	msgs = append(msgs, llm.Message{Role: "user", Content: message})

	reply, err := a.llm.Chat(ctx, msgs)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			a.logger.Warn("chat model call failed", zap.Error(err))
		}
		return Apology
	}
	return reply
}

func (a *Agent) placeOrder(ctx context.Context, patient, medicine string, qty int64) string {
	med, err := a.repo.PlaceOrder(ctx, patient, medicine, qty)
	switch {
	case err == store.ErrMedicineNotFound:
		return fmt.Sprintf("Error: Medicine '%s' not found. Please check the exact name.", medicine)
	case err == store.ErrInsufficientStock:
		return fmt.Sprintf("Error: Insufficient stock. Only %d %s remaining.", med.Stock, med.Unit)
	case err != nil:
		a.logger.Error("order placement failed", zap.Error(err))
		return Apology
	}
	return fmt.Sprintf("Order placed: %d %s of %s (%s) for %s. Total: $%.2f.",
		qty, med.Unit, med.Name, med.Dosage, patient, float64(qty)*med.Price)
}

func (a *Agent) historySummary(ctx context.Context, patient *pkg.Patient) string {
	records, err := a.repo.PatientHistory(ctx, patient.Name)
	if err != nil {
		a.logger.Warn("history lookup failed", zap.Error(err))
		return Apology
	}
	if len(records) == 0 {
		return fmt.Sprintf("I have no purchase history on file for %s.", patient.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent purchases for %s:\n", patient.Name)
	for i, rec := range records {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- %s: %d of %s\n", rec.Date, rec.Qty, rec.Medicine)
	}
	return strings.TrimRight(b.String(), "\n")
}

// mentionedMedicines matches catalog names appearing in the message.
func (a *Agent) mentionedMedicines(ctx context.Context, lower string) []store.Medicine {
	meds, err := a.repo.SearchMedicines(ctx, "")
	if err != nil {
		a.logger.Warn("catalog lookup failed", zap.Error(err))
		return nil
	}
	var matched []store.Medicine
	for _, m := range meds {
		if strings.Contains(lower, strings.ToLower(m.Name)) {
			matched = append(matched, m)
		}
	}
	return matched
}

// mentionedPatient resolves the patient the message refers to: an explicit
// "patient N" reference goes through the store's id-or-name lookup, otherwise
// the roster is scanned for a name appearing in the message.
func (a *Agent) mentionedPatient(ctx context.Context, lower string) *pkg.Patient {
	if m := patientRefPattern.FindStringSubmatch(lower); m != nil {
		p, err := a.repo.FindPatient(ctx, m[1])
		if err != nil {
			a.logger.Warn("patient lookup failed", zap.Error(err))
		} else if p != nil {
			return p
		}
	}
	patients, err := a.repo.ListPatients(ctx)
	if err != nil {
		a.logger.Warn("roster lookup failed", zap.Error(err))
		return nil
	}
	for i, p := range patients {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return &patients[i]
		}
	}
	return nil
}

// isSafetyQuery detects questions about combining medicines or their side
// effects, which are answered from the reference corpus.
func isSafetyQuery(lower string) bool {
	for _, w := range []string{"interact", "side effect", "together with", "safe to take", "safe with", "combine"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// allergyBlock applies the allergy safety rule: an order is refused when any
// of the patient's recorded allergies appears in the medicine's name or
// category.  The sentinel "None" never matches.
func allergyBlock(patient *pkg.Patient, med store.Medicine) string {
	for _, raw := range strings.Split(patient.Allergies, ",") {
		allergy := strings.ToLower(strings.TrimSpace(raw))
		if allergy == "" || allergy == "none" {
			continue
		}
		if strings.Contains(strings.ToLower(med.Name), allergy) ||
			strings.Contains(strings.ToLower(med.Category), allergy) {
			return fmt.Sprintf("SAFETY ALERT: Order blocked. %s is allergic to %s (%s). Please consult a pharmacist before overriding.",
				patient.Name, allergy, med.Name)
		}
	}
	return ""
}

func isAffirmative(lower string) bool {
	for _, w := range []string{"yes", "i do", "i have", "yeah", "yep"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func isNegative(lower string) bool {
	for _, w := range []string{"no", "not yet", "don't", "dont"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
