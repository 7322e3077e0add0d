// seed-demo writes several months of realistic expenses for a demo user into
// the configured store, so forecasts, budgets and anomaly reports have data.
//
// Usage:
//
//	go run ./scripts/seed-demo/ -user demo-user -months 6
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/bootstrap"
	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/logging"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/shopspring/decimal"
)

type expenseTemplate struct {
	description string
	minAmount   float64
	maxAmount   float64
	category    string
}

var monthlyExpenses = []expenseTemplate{
	{"Rent payment", 2200, 2200, "Rent"},
	{"Electricity bill", 120, 220, "Electricity"},
	{"Water bill", 45, 75, "Water"},
	{"Internet bill", 89, 89, "Internet"},
	{"Netflix", 22.99, 22.99, "Entertainment"},
	{"Gym membership", 65, 65, "Health"},
}

var weeklyExpenses = []expenseTemplate{
	{"Grocery shopping", 80, 200, "Groceries"},
	{"Petrol", 55, 110, "Fuel"},
}

var randomExpenses = []expenseTemplate{
	{"Coffee", 4.5, 8, "Food"},
	{"Lunch out", 15, 35, "Food"},
	{"Dinner at restaurant", 45, 120, "Food"},
	{"Pizza takeaway", 20, 55, "Food"},
	{"Uber ride", 12, 45, "Taxi"},
	{"Taxi to airport", 40, 80, "Taxi"},
	{"Vegetable market", 10, 30, "Vegetable"},
	{"Movie tickets", 18, 40, "Entertainment"},
	{"Clothing", 40, 200, "Shopping"},
	{"Pharmacy", 10, 60, "Health"},
}

func main() {
	userID := flag.String("user", "demo-user", "user to seed")
	months := flag.Int("months", 6, "months of history to generate")
	seed := flag.Int64("seed", 42, "random seed")
	configFile := flag.String("config", "", "config file (default: ./config.yaml)")
	flag.Parse()

	if err := run(*configFile, *userID, *months, *seed); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile, userID string, months int, seed int64) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rng := rand.New(rand.NewSource(seed))
	expenses := generateExpenses(userID, months, time.Now().UTC(), rng)
	for _, e := range expenses {
		if err := s.CreateExpense(ctx, e); err != nil {
			return fmt.Errorf("failed to create expense %q: %w", e.Description, err)
		}
	}
	logger.Info("seeded demo expenses", "user_id", userID, "count", len(expenses), "months", months)
	return nil
}

// generateExpenses builds recurring bills, weekly shopping and a few random
// purchases a day between now-months and now. Roughly one random purchase
// in fifty is inflated to give the anomaly detector something to find.
func generateExpenses(userID string, months int, now time.Time, rng *rand.Rand) []*store.Expense {
	start := now.AddDate(0, -months, 0)
	var out []*store.Expense
	add := func(tmpl expenseTemplate, at time.Time, scale float64) {
		amount := randAmount(rng, tmpl.minAmount, tmpl.maxAmount).Mul(decimal.NewFromFloat(scale)).Round(2)
		category := tmpl.category
		out = append(out, &store.Expense{
			UserID:      userID,
			Amount:      amount.StringFixed(2),
			Date:        at.Format(time.RFC3339),
			Description: tmpl.description,
			Category:    &category,
		})
	}

	for _, tmpl := range monthlyExpenses {
		for m := 0; m < months; m++ {
			add(tmpl, start.AddDate(0, m, rng.Intn(5)), 1)
		}
	}
	for _, tmpl := range weeklyExpenses {
		for d := start; d.Before(now); d = d.AddDate(0, 0, 6+rng.Intn(3)) {
			add(tmpl, d, 1)
		}
	}

	for d := start; d.Before(now); d = d.AddDate(0, 0, 1) {
		n := 2 + rng.Intn(4)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			n += 1 + rng.Intn(2)
		}
		for i := 0; i < n; i++ {
			tmpl := randomExpenses[rng.Intn(len(randomExpenses))]
			at := time.Date(d.Year(), d.Month(), d.Day(), 8+rng.Intn(14), rng.Intn(60), 0, 0, time.UTC)
			scale := 1.0
			if rng.Intn(50) == 0 {
				scale = 3 + rng.Float64()*2
			}
			add(tmpl, at, scale)
		}
	}
	return out
}

func randAmount(rng *rand.Rand, lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(lo + rng.Float64()*(hi-lo))
}
