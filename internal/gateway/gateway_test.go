package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/gateway"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every request must carry the tunnel bypass header.
		require.Equal(t, "true", r.Header.Get("ngrok-skip-browser-warning"))
		handler(w, r)
	}))
}

func TestChat_SendsThreadAndDecodesReply(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "do you have aspirin?", req["message"])
		assert.Equal(t, "thread-9", req["thread_id"])
		json.NewEncoder(w).Encode(map[string]string{"response": "We do."})
	})
	defer srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	assert.Equal(t, "We do.", c.Chat(context.Background(), "do you have aspirin?", "thread-9"))
}

func TestChat_DefaultsThreadID(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, gateway.DefaultThreadID, req["thread_id"])
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	})
	defer srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	c.Chat(context.Background(), "hi", "")
}

func TestChat_FallsBackOnFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	})
	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	assert.Equal(t, gateway.ChatFallback, c.Chat(context.Background(), "hi", "t"))

	// Unreachable server, same sentinel.
	srv.Close()
	assert.Equal(t, gateway.ChatFallback, c.Chat(context.Background(), "hi", "t"))
}

func TestListInventory_MissingPriceIsZero(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/inventory", r.URL.Path)
		io.WriteString(w, `[{"id":1,"name":"Paracetamol","stock":100,"unit":"Tablets","price":1.5},
		                   {"id":2,"name":"Aspirin","stock":150,"unit":"Tablets"}]`)
	})
	defer srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	items, err := c.ListInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1.5, items[0].Price)
	assert.Equal(t, 0.0, items[1].Price)
}

func TestListAlerts_UnwrapsEnvelope(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/alerts", r.URL.Path)
		io.WriteString(w, `{"alerts":["Patient User1 purchased Metformin 28 days ago. Refill might be needed."]}`)
	})
	defer srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	alerts, err := c.ListAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "Refill might be needed")
}

func TestListOrderHistoryAndPatients(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/history":
			io.WriteString(w, `[{"id":3,"date":"2026-08-01","patient":"User2","medicine":"Metformin","qty":30}]`)
		case "/patients":
			io.WriteString(w, `[{"id":1,"name":"User1","age":34,"allergies":"Penicillin","conditions":"None"}]`)
		default:
			http.NotFound(w, r)
		}
	})
	defer srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())

	records, err := c.ListOrderHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, pkg.OrderRecord{ID: 3, Date: "2026-08-01", Patient: "User2", Medicine: "Metformin", Qty: 30}, records[0])

	patients, err := c.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "Penicillin", patients[0].Allergies)
}

func TestUploadPrescription_MultipartAndTaggedResult(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload-prescription", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "rx.jpg", header.Filename)
		sent, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, payload, sent)
		// quantity arrives as a JSON number; the client must tolerate it
		io.WriteString(w, `{"medicine_name":"Amoxicillin","dosage":"500mg","quantity":3,"instructions":"Take one daily"}`)
	})
	defer srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	res, err := c.UploadPrescription(context.Background(), "rx.jpg", payload)
	require.NoError(t, err)
	assert.Equal(t, pkg.PrescriptionStructured, res.Kind())
	assert.Equal(t, "Amoxicillin", res.MedicineName)
	assert.Equal(t, "3", res.Quantity.String())
}

func TestUploadPrescription_TransportFailureIsError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	c := gateway.NewHTTPClient(srv.URL, zap.NewNop())
	_, err := c.UploadPrescription(context.Background(), "rx.jpg", []byte{1})
	require.Error(t, err)
}
