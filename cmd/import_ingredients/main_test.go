package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"formulary/internal/config"
	"formulary/internal/db/dbtest"
	"formulary/models"
)

func TestRunImportsPriceSheet(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":0")
	database := dbtest.Open(t)
	original := openDatabase
	openDatabase = func(context.Context, config.Config) (*gorm.DB, error) { return database, nil }
	t.Cleanup(func() { openDatabase = original })

	path := filepath.Join(t.TempDir(), "sheet.csv")
	if err := os.WriteFile(path, []byte("name,quantity,cost\nBeeswax,1000,500\nMica,50,5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), path); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var count int64
	if err := database.Model(&models.Ingredient{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 ingredients, got %d", count)
	}
}

func TestRunRejectsMissingOrEmptySheet(t *testing.T) {
	if err := run(context.Background(), " "); err == nil {
		t.Fatal("expected error for blank path")
	}
	if err := run(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("nothing to see\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), path); err == nil {
		t.Fatal("expected error when no rows are found")
	}
}
