package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/chat"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/dashboard"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/gateway"
	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/voice"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	baseURL := os.Getenv("PHARMACY_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	interval := dashboard.DefaultPollInterval
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	gw := gateway.NewHTTPClient(baseURL, logger.Named("gateway"))
	session := chat.NewSession(gw, uuid.NewString(), logger.Named("chat"))
	dash := dashboard.NewController(gw, interval, logger.Named("dashboard"))

	// No speech engines exist on this platform; the bridge still gates the
	// capability so /voice reports the notice instead of misbehaving.
	bridge := voice.NewBridge(nil, nil, nil, logger.Named("voice"))

	printer := &transcriptPrinter{}
	session.OnChange(func() { printer.print(session.Messages()) })
	printer.print(session.Messages())

	dash.Start(ctx)
	defer dash.Stop()

	fmt.Println(`Commands: /inventory /history /alerts /patients /upload <path> /voice /quit`)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return
		case line == "/inventory":
			dash.SelectTab(dashboard.TabInventory)
			printInventory(dash)
		case line == "/history":
			dash.SelectTab(dashboard.TabHistory)
			printHistory(dash)
		case line == "/alerts":
			dash.SelectTab(dashboard.TabAlerts)
			printAlerts(dash)
		case line == "/patients":
			dash.SelectTab(dashboard.TabPatients)
			printPatients(dash)
		case strings.HasPrefix(line, "/upload "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload"))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("cannot read %s: %v\n", path, err)
				continue
			}
			session.SubmitImage(ctx, path, data)
		case line == "/voice":
			if err := bridge.Start(ctx); err != nil {
				fmt.Println(err)
			}
		case line != "":
			if !session.SubmitText(ctx, line) {
				fmt.Println("(the assistant is still responding, please wait)")
			}
		}
	}
}

// transcriptPrinter renders only the messages appended since the last call.
type transcriptPrinter struct {
	mu      sync.Mutex
	printed int
}

func (p *transcriptPrinter) print(messages []pkg.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(messages); p.printed++ {
		m := messages[p.printed]
		label := "you"
		if m.Role == pkg.RoleAssistant {
			label = "pharmacist"
		}
		content := m.Content
		if m.Kind == pkg.MessageImage {
			content = "[prescription image]"
		}
		fmt.Printf("%s> %s\n", label, content)
	}
}

func printInventory(dash *dashboard.Controller) {
	items, ok := dash.Inventory.Snapshot()
	if !ok {
		fmt.Println("inventory not loaded yet")
		return
	}
	for _, it := range items {
		status := "In Stock"
		if dashboard.LowStock(it.Stock) {
			status = "Low Stock"
		}
		fmt.Printf("%-16s %5d %-10s $%6.2f  %s\n", it.Name, it.Stock, it.Unit, it.Price, status)
	}
	fmt.Printf("total inventory value: $%.2f\n", dash.Metrics().TotalInventoryValue)
}

func printHistory(dash *dashboard.Controller) {
	records, ok := dash.History.Snapshot()
	if !ok {
		fmt.Println("history not loaded yet")
		return
	}
	for _, rec := range records {
		fmt.Printf("%s  %-10s %-16s x%d\n", rec.Date, rec.Patient, rec.Medicine, rec.Qty)
	}
}

func printAlerts(dash *dashboard.Controller) {
	alerts, ok := dash.Alerts.Snapshot()
	if !ok {
		fmt.Println("alerts not loaded yet")
		return
	}
	if len(alerts) == 0 {
		fmt.Println("no alerts active")
		return
	}
	for _, a := range alerts {
		fmt.Println("! " + a)
	}
}

func printPatients(dash *dashboard.Controller) {
	patients, ok := dash.Patients.Snapshot()
	if !ok {
		fmt.Println("patient roster loading...")
		return
	}
	for _, p := range patients {
		fmt.Printf("%-10s age %-3d allergies: %-12s conditions: %s\n",
			p.Name, p.Age, p.Allergies, p.Conditions)
	}
}
