// Command menuctl runs the menu engineering pipeline on local exports without
// the API server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"chefia/internal/backup"
	"chefia/internal/config"
	"chefia/internal/ingest"
	"chefia/internal/menu"
	"chefia/internal/models"
	"chefia/internal/observability"
)

var (
	salesFile  = flag.String("sales", "", "Sales export (CSV)")
	costsFile  = flag.String("costs", "", "Cost export (CSV)")
	backupFile = flag.String("backup", "", "Previously exported backup CSV, instead of -sales/-costs")
	csvOut     = flag.String("csv", "", "Write the merged dataset as a backup CSV")
	xlsxOut    = flag.String("xlsx", "", "Write the merged dataset as a spreadsheet")
	plain      = flag.Bool("plain", false, "Disable colours")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	// Progress goes to stderr so stdout stays a clean table.
	logger := observability.NewLoggerTo(os.Stderr, config.LogConfig{Level: cfg.Log.Level, Format: "text"})

	a, dropped, err := analyse()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	logger.Info("menu analysed", "outcome", a.Outcome, "items", len(a.Items), "dropped_cost_rows", dropped)

	if err := report(os.Stdout, a, dropped, !*plain); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}

	if *csvOut != "" {
		if err := writeFile(*csvOut, func(w io.Writer) error { return backup.WriteCSV(w, a.Items) }); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
			os.Exit(1)
		}
		logger.Info("backup written", "path", *csvOut)
	}
	if *xlsxOut != "" {
		if err := writeFile(*xlsxOut, func(w io.Writer) error { return backup.WriteXLSX(w, a) }); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
			os.Exit(1)
		}
		logger.Info("spreadsheet written", "path", *xlsxOut)
	}
}

func analyse() (*menu.Analysis, int, error) {
	if *backupFile != "" {
		f, err := os.Open(*backupFile)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		entries, err := backup.ReadCSV(f)
		if err != nil {
			return nil, 0, err
		}
		return menu.FromEntries(entries), 0, nil
	}

	if *salesFile == "" || *costsFile == "" {
		return nil, 0, errors.New("both -sales and -costs are required (or -backup)")
	}

	var (
		sales []models.SalesRecord
		costs []models.CostRecord
		stats ingest.CostStats
	)
	var g errgroup.Group
	g.Go(func() error {
		f, err := os.Open(*salesFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if sales, err = ingest.ParseSales(f); err != nil {
			return fmt.Errorf("%s: %w", *salesFile, err)
		}
		return nil
	})
	g.Go(func() error {
		f, err := os.Open(*costsFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if costs, stats, err = ingest.ParseCosts(f); err != nil {
			return fmt.Errorf("%s: %w", *costsFile, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return menu.Merge(sales, costs), stats.DroppedRows, nil
}

func report(w io.Writer, a *menu.Analysis, dropped int, color bool) error {
	render := func(style func(...string) string, s string) string {
		if color {
			return style(s)
		}
		return s
	}

	if _, err := fmt.Fprintln(w, render(titleStyle.Render, "Menu Engineering Matrix")); err != nil {
		return err
	}
	if a.Outcome != menu.OutcomeOK {
		_, err := fmt.Fprintln(w, render(errorStyle.Render, outcomeMessage(a.Outcome)))
		return err
	}

	fmt.Fprint(w, renderTable(a.Items, color))
	fmt.Fprintln(w, renderSummary(a))

	warnings := a.Report.Warnings()
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d cost rows were dropped for an unreadable value", dropped))
	}
	for _, warning := range warnings {
		if _, err := fmt.Fprintln(w, render(warnStyle.Render, warning)); err != nil {
			return err
		}
	}
	return nil
}

func outcomeMessage(o menu.Outcome) string {
	switch o {
	case menu.OutcomeNoData:
		return "one of the files has no usable rows"
	case menu.OutcomeNoOverlap:
		return "no product name appears in both files"
	case menu.OutcomeNoSales:
		return "no matched product has any sales"
	default:
		return string(o)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
