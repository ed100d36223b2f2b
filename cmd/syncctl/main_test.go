package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
)

func openTestDB(t *testing.T) {
	t.Helper()
	conn, err := config.OpenDatabase(config.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(conn)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(prev)
	})
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBackfillAndHistory(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()
	_, err := models.CreateProductOrder(ctx, &models.NewProductOrder{
		Id:    "O1",
		State: models.OrderStateCompleted,
		Items: []models.NewOrderItem{{OfferingId: "FIB-100", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	out, err := execute(t, "backfill", "orders", "--limit", "10", "--dry-run")
	if err != nil || !strings.Contains(out, "O1") || !strings.Contains(out, "pending") {
		t.Fatalf("dry run: %v\n%s", err, out)
	}
	if products, _ := models.ListInventoryProductsBySourceOrder(ctx, "O1"); len(products) != 0 {
		t.Fatalf("dry run must not create products")
	}

	out, err = execute(t, "backfill", "orders", "--limit", "10")
	if err != nil || !strings.Contains(out, "updated=1") {
		t.Fatalf("backfill: %v\n%s", err, out)
	}
	out, err = execute(t, "backfill", "orders", "--limit", "10")
	if err != nil || !strings.Contains(out, "already_synced") {
		t.Fatalf("second backfill must skip: %v\n%s", err, out)
	}

	out, err = execute(t, "history", "show")
	if err != nil || !strings.Contains(out, "Ledger (1)") {
		t.Fatalf("history show: %v\n%s", err, out)
	}
	if _, err := execute(t, "history", "clear"); err == nil {
		t.Fatalf("clear without --yes must fail")
	}
	if _, err := execute(t, "history", "clear", "--yes"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	out, _ = execute(t, "history", "show")
	if !strings.Contains(out, "Ledger (0)") {
		t.Fatalf("history must be empty after clear:\n%s", out)
	}
}

func TestRunsCommands(t *testing.T) {
	openTestDB(t)

	if _, err := execute(t, "backfill", "qualifications", "--limit", "5"); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	out, err := execute(t, "runs", "list", "--kind", "qualifications")
	if err != nil || !strings.Contains(out, "qualifications") {
		t.Fatalf("runs list: %v\n%s", err, out)
	}

	path := filepath.Join(t.TempDir(), "run.xlsx")
	if _, err := execute(t, "runs", "export", "1", "-o", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("expected a workbook at %s: %v", path, err)
	}

	out, err = execute(t, "runs", "process", "1")
	if err != nil || !strings.Contains(out, "nothing to do") {
		t.Fatalf("processing a finished run: %v\n%s", err, out)
	}
	if _, err := execute(t, "runs", "export", "abc"); err == nil {
		t.Fatalf("expected an invalid id error")
	}
	if _, err := execute(t, "runs", "export", "99"); err == nil {
		t.Fatalf("expected a not found error")
	}
}
