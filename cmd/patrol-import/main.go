// patrol-import is a one-shot pipeline run: read a CSV, infer the
// mapping, normalize, and print a report to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"pisopatrol/internal/cluster"
	"pisopatrol/internal/config"
	applog "pisopatrol/internal/log"
	"pisopatrol/internal/mapping"
	"pisopatrol/internal/metrics"
	"pisopatrol/internal/normalize"
	"pisopatrol/internal/sheets/csvfile"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelWarn, Component: applog.ComponentImport})
	slog.SetDefault(logger.Logger)

	path := flag.String("file", "", "path to the CSV file to import")
	showCohorts := flag.Bool("cohorts", false, "cluster expense categories into cohorts")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: patrol-import -file transactions.csv [-cohorts]")
		os.Exit(2)
	}

	cfg := config.Load()

	table, err := csvfile.FromPath(*path).Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}

	m := mapping.InferWithThreshold(table.Headers, cfg.MappingThreshold)
	fmt.Println("Column mapping:")
	for _, field := range mapping.CanonicalFields {
		if col, ok := m.Source(field); ok {
			fmt.Printf("  %-8s <- %q (%.0f%%)\n", field, col, m.Confidence[field]*100)
		} else {
			fmt.Printf("  %-8s    unmapped\n", field)
		}
	}

	result, err := normalize.Run(table, m, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "normalize: %v\n", err)
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  row %d: %s %q: %v\n", e.Row, e.Field, e.Value, e.Err)
		}
		os.Exit(1)
	}

	fmt.Printf("\nImported %d of %d rows\n", result.Ledger.Len(), result.Total)
	for _, e := range result.Errors {
		fmt.Printf("  dropped row %d: %s %q: %v\n", e.Row, e.Field, e.Value, e.Err)
	}

	txs := result.Ledger.Transactions()
	eng := metrics.New(txs)
	f := metrics.NewFormatter(cfg.CurrencySymbol)

	sum := eng.Summarize()
	fmt.Printf("\nIncome  %s%s\nExpense %s%s\nStash   %s%s\nNet     %s%s\n",
		cfg.CurrencySymbol, sum.Income.Decimal(),
		cfg.CurrencySymbol, sum.Expense.Decimal(),
		cfg.CurrencySymbol, sum.Stash.Decimal(),
		cfg.CurrencySymbol, sum.Net.Decimal())

	habits := eng.Habits()
	if len(habits) > 0 {
		fmt.Println("\nSpending habits:")
		for _, h := range habits {
			fmt.Println("  " + f.HabitInsight(h))
		}
	}

	if *showCohorts {
		res := cluster.Run(txs, cluster.Options{K: cfg.ClusterCount, Seed: cfg.ClusterSeed})
		fmt.Printf("\nCohorts (K=%d", res.K)
		if res.Degenerate {
			fmt.Print(", reduced")
		}
		fmt.Println("):")
		for _, a := range res.Assignments {
			fmt.Printf("  %-20s %s\n", a.Features.Category, a.Cohort)
		}
	}
}
