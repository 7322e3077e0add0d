// import-csv loads expenses from a CSV export into the configured store.
//
// The file needs a header row. userId, amount and date are required columns;
// description, category and notes are optional. Rows with an unparseable
// amount or date are reported and skipped.
//
// Usage:
//
//	export ANALYTICS_STORE_BACKEND=postgres
//	export ANALYTICS_STORE_POSTGRES_DSN=postgres://localhost/analytics?sslmode=disable
//	go run ./scripts/import-csv/ -file expenses.csv
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/bootstrap"
	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/logging"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/shopspring/decimal"
)

var requiredColumns = []string{"userId", "amount", "date"}

func main() {
	file := flag.String("file", "", "CSV file to import")
	configFile := flag.String("config", "", "config file (default: ./config.yaml)")
	dryRun := flag.Bool("dry-run", false, "parse and validate without writing")
	flag.Parse()

	if err := run(*file, *configFile, *dryRun); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(file, configFile string, dryRun bool) error {
	if file == "" {
		return errors.New("-file is required")
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	expenses, rowErrs, err := readExpenses(f)
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrs {
		logger.Warn("skipping row", "error", rowErr)
	}
	logger.Info("parsed expenses", "valid", len(expenses), "skipped", len(rowErrs))
	if dryRun {
		return nil
	}

	ctx := context.Background()
	if cfg.Store.Backend == "memory" {
		logger.Warn("importing into the in-memory store; data is discarded on exit")
	}
	s, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	imported, err := importExpenses(ctx, s, expenses)
	logger.Info("import finished", "imported", imported, "store", cfg.Store.Backend)
	return err
}

// readExpenses parses a CSV stream. Malformed rows are returned as row
// errors; a missing required column fails the whole read.
func readExpenses(r io.Reader) ([]*store.Expense, []error, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		expenses []*store.Expense
		rowErrs  []error
	)
	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		e := &store.Expense{
			UserID:      field(record, "userId"),
			Amount:      field(record, "amount"),
			Date:        field(record, "date"),
			Description: field(record, "description"),
			Notes:       field(record, "notes"),
		}
		if c := field(record, "category"); c != "" {
			e.Category = &c
		}

		if e.UserID == "" {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: empty userId", line))
			continue
		}
		if _, err := decimal.NewFromString(e.Amount); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: invalid amount %q", line, e.Amount))
			continue
		}
		if _, ok := analytics.ParseTimestamp(e.Date); !ok {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: invalid date %q", line, e.Date))
			continue
		}
		expenses = append(expenses, e)
	}
	return expenses, rowErrs, nil
}

func importExpenses(ctx context.Context, s store.Store, expenses []*store.Expense) (int, error) {
	for i, e := range expenses {
		if err := s.CreateExpense(ctx, e); err != nil {
			return i, fmt.Errorf("failed to import expense %d: %w", i+1, err)
		}
	}
	return len(expenses), nil
}
