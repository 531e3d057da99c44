package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"formulary/internal/config"
	"formulary/internal/db"
	"formulary/internal/db/mock"
	"formulary/internal/importer"
	"formulary/internal/inventory"
	"formulary/internal/lock"
	applog "formulary/internal/log"
)

var openDatabase = func(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	if cfg.Database.UseMock {
		return mock.New(ctx)
	}
	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(database); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return database, nil
}

func main() {
	path := "price-sheet.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := run(context.Background(), path); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("price sheet path must not be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applog.SetLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}

	rows, err := importer.ParseFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no ingredient rows found in %s", filepath.Base(path))
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	ledger := inventory.NewLedger(database, lock.NewLocal())
	report, err := importer.Apply(ctx, ledger, rows)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Imported %s: %d created, %d topped up, %d skipped\n",
		filepath.Base(path), report.Created, report.ToppedUp, len(report.Failed))
	for _, failure := range report.Failed {
		fmt.Fprintf(os.Stdout, "  skipped %s\n", failure)
	}
	return nil
}
