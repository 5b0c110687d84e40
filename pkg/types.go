package pkg

import (
	"encoding/json"
	"strings"
)

// Role identifies who authored a chat message.  There are only two roles:
// the patient talking to the pharmacy, and the assistant replying.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind distinguishes plain text turns from image turns (an uploaded
// prescription rendered as a local preview).
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
)

// Message is one entry in a conversation transcript.  Messages are
// append-only and their slice order is the display order.
type Message struct {
	Role    Role        `json:"role"`
	Kind    MessageKind `json:"kind"`
	Content string      `json:"content"`
}

// InventoryItem is one row of the pharmacy inventory snapshot.  The remote
// service owns the data; the client never mutates it.
type InventoryItem struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Stock int64   `json:"stock"`
	Unit  string  `json:"unit"`
	Price float64 `json:"price"`
}

// OrderRecord is one row of the order history snapshot.
type OrderRecord struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Patient  string `json:"patient"`
	Medicine string `json:"medicine"`
	Qty      int64  `json:"qty"`
}

// Patient is one row of the patient roster.  Allergies and Conditions are
// comma-delimited strings with the sentinel "None" when empty.
type Patient struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Allergies  string `json:"allergies"`
	Conditions string `json:"conditions"`
}

// InventoryMetrics holds summary statistics derived from the latest
// inventory snapshot.  Never persisted and never fetched independently.
type InventoryMetrics struct {
	TotalInventoryValue float64 `json:"total_inventory_value"`
}

// Quantity tolerates both JSON numbers and JSON strings: vision models emit
// either for the quantity field of an extracted prescription.
type Quantity string

func (q *Quantity) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*q = Quantity(v)
		return nil
	}
	*q = Quantity(s)
	return nil
}

func (q Quantity) String() string { return string(q) }

// PrescriptionKind discriminates the three mutually exclusive shapes an
// upload-prescription response can take.
type PrescriptionKind int

const (
	// PrescriptionStructured means the extraction produced the structured
	// fields (medicine name, dosage, quantity, instructions).
	PrescriptionStructured PrescriptionKind = iota
	// PrescriptionRawText means only unstructured text could be read.
	PrescriptionRawText
	// PrescriptionFailed means the analysis itself failed; Error may carry
	// the server-side reason.
	PrescriptionFailed
)

// PrescriptionResult is the tagged union returned by the upload-prescription
// endpoint.  Exactly one shape applies per response; use Kind to branch.
type PrescriptionResult struct {
	MedicineName string   `json:"medicine_name,omitempty"`
	Dosage       string   `json:"dosage,omitempty"`
	Quantity     Quantity `json:"quantity,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	RawText      string   `json:"raw_text,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Kind reports which shape of the union is populated.  A structured result
// wins over raw text, and raw text wins over an error: the server may attach
// an error note alongside raw text it managed to salvage.
func (r PrescriptionResult) Kind() PrescriptionKind {
	switch {
	case r.MedicineName != "":
		return PrescriptionStructured
	case r.RawText != "":
		return PrescriptionRawText
	default:
		return PrescriptionFailed
	}
}
