package agent

import (
	"context"
	"fmt"
	"time"
)

// Refill window: a supply is assumed to last roughly 30 days, so purchases
// 25 to 35 days old are flagged as likely refill candidates.
const (
	refillWindowMin = 25
	refillWindowMax = 35
)

// RefillAlerts scans the latest purchase of every patient+medicine pair and
// flags the ones inside the refill window.
func (a *Agent) RefillAlerts(ctx context.Context) ([]string, error) {
	return a.refillAlertsAt(ctx, time.Now())
}

func (a *Agent) refillAlertsAt(ctx context.Context, now time.Time) ([]string, error) {
	purchases, err := a.repo.LatestPurchases(ctx)
	if err != nil {
		return nil, err
	}
	var alerts []string
	for _, p := range purchases {
		days := int(now.Sub(p.Date).Hours() / 24)
		if days >= refillWindowMin && days <= refillWindowMax {
			alerts = append(alerts,
				fmt.Sprintf("Patient %s purchased %s %d days ago. Refill might be needed.",
					p.Patient, p.Medicine, days))
		}
	}
	return alerts, nil
}
