package reconcile

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/tombstone"
)

func openSQLite(t *testing.T) *gorm.DB {
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
	return conn
}

// Runs both scenarios against sqlite through the same stores the service uses.
func TestReconciler_WithGormStores(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()

	if err := conn.Create(&models.UserProfile{ID: "U1", Email: "a@x.com"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	ledger := tombstone.NewStore(tombstone.NewGormBackend(conn), quietLogger())
	r := New(models.GormEntityStore{}, ledger, WithLogger(quietLogger()))

	q, err := models.CreateQualificationCheck(ctx, &models.NewQualificationCheck{
		Id: "Q1",
		Notes: []annotation.Note{
			{Text: `LOCATION:{"address":"12 Lake Rd","district":"Kandy","province":"Central","postalCode":"20000"}`},
		},
		RelatedParty: []models.RelatedParty{{Email: "a@x.com"}},
	})
	if err != nil {
		t.Fatalf("create qualification: %v", err)
	}
	if updated, err := r.ReconcileQualification(ctx, *q); err != nil || !updated {
		t.Fatalf("reconcile qualification: %v %v", updated, err)
	}
	user, _ := models.GetUserProfile(ctx, "U1")
	if user.Address.District != "Kandy" {
		t.Fatalf("expected Kandy, got %+v", user.Address)
	}

	order, err := models.CreateProductOrder(ctx, &models.NewProductOrder{
		Id:    "O1",
		State: models.OrderStateCompleted,
		Items: []models.NewOrderItem{{OfferingId: "FIB-100", OfferingName: "Fiber 100Mbps", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	created, err := r.ReconcileOrder(ctx, *order)
	if err != nil || len(created) != 1 {
		t.Fatalf("reconcile order: %d %v", len(created), err)
	}
	if again, err := r.ReconcileOrder(ctx, *order); err != nil || len(again) != 0 {
		t.Fatalf("second pass must be empty: %d %v", len(again), err)
	}

	stored, _ := models.ListInventoryProductsBySourceOrder(ctx, "O1")
	if len(stored) != 1 || !stored[0].HasProvenance() || *stored[0].OriginalQuantity != 1 {
		t.Fatalf("unexpected stored products: %+v", stored)
	}
}

func TestReconcileQualification_MixedCaseStoredEmail(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()

	if err := conn.Create(&models.UserProfile{ID: "U1", Email: "Alice@X.com"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	r := New(models.GormEntityStore{}, tombstone.NewStore(tombstone.NewGormBackend(conn), quietLogger()), WithLogger(quietLogger()))

	q := models.QualificationCheck{
		ID: "Q1",
		Notes: []annotation.Note{
			{Text: `LOCATION:{"address":"12 Lake Rd","district":"Kandy","province":"Central"}`},
		},
		RelatedParty: []models.RelatedParty{{Email: "Alice@X.com"}},
	}
	res, err := r.SyncQualification(ctx, q)
	if err != nil || !res.Updated {
		t.Fatalf("expected update for mixed-case email, got %+v %v", res, err)
	}
	user, _ := models.GetUserProfile(ctx, "U1")
	if user.Address.District != "Kandy" {
		t.Fatalf("expected Kandy, got %+v", user.Address)
	}
}
