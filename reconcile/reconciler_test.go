package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/tombstone"
)

// fakeEntities is an in-memory EntityStore.
type fakeEntities struct {
	mu        sync.Mutex
	users     map[string]*models.UserProfile
	products  []models.InventoryProduct
	createErr error
	findErr   error
	seq       int
}

func newFakeEntities(users ...models.UserProfile) *fakeEntities {
	f := &fakeEntities{users: map[string]*models.UserProfile{}}
	for i := range users {
		u := users[i]
		f.users[u.Email] = &u
	}
	return f
}

func (f *fakeEntities) FindUserByEmail(_ context.Context, email string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeEntities) UpdateUserAddress(_ context.Context, userId string, addr annotation.Address, sourceId string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userId {
			src := sourceId
			u.Address = addr
			u.AddressSourceId = &src
			u.AddressSyncedAt = &at
			u.UpdatedAt = at
			return nil
		}
	}
	return errors.New("user vanished")
}

func (f *fakeEntities) CreateInventoryProducts(_ context.Context, products []models.InventoryProduct) ([]models.InventoryProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for i := range products {
		f.seq++
		products[i].ID = fmt.Sprintf("P%d", f.seq)
		f.products = append(f.products, products[i])
	}
	return products, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLedger() *tombstone.Store {
	return tombstone.NewStore(tombstone.NewMemoryBackend(), quietLogger())
}

func kandyQualification() models.QualificationCheck {
	return models.QualificationCheck{
		ID: "Q1",
		Notes: []annotation.Note{
			{Text: `LOCATION:{"address":"12 Lake Rd","district":"Kandy","province":"Central","postalCode":"20000"}`},
		},
		RelatedParty: []models.RelatedParty{{Email: "a@x.com"}},
	}
}

func orderO1() models.ProductOrder {
	return models.ProductOrder{
		ID:        "O1",
		State:     models.OrderStateCompleted,
		OrderDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{OfferingId: "FIB-100", OfferingName: "Fiber 100Mbps", Quantity: 1},
		},
		RelatedParty: []models.RelatedParty{{Email: "a@x.com"}},
	}
}

func TestReconcileQualification_KandyScenario(t *testing.T) {
	entities := newFakeEntities(models.UserProfile{ID: "U1", Email: "a@x.com"})
	r := New(entities, newLedger(), WithLogger(quietLogger()))

	updated, err := r.ReconcileQualification(context.Background(), kandyQualification())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !updated {
		t.Fatalf("expected the user to be updated")
	}
	u := entities.users["a@x.com"]
	if u.Address.District != "Kandy" || u.Address.Street != "12 Lake Rd" || u.Address.PostalCode != "20000" {
		t.Fatalf("unexpected address: %+v", u.Address)
	}
	if u.AddressSourceId == nil || *u.AddressSourceId != "Q1" || u.AddressSyncedAt == nil {
		t.Fatalf("provenance not recorded: %+v", u)
	}

	again, err := r.ReconcileQualification(context.Background(), kandyQualification())
	if err != nil || again {
		t.Fatalf("re-processing an unchanged qualification must be a no-op, got %v %v", again, err)
	}
}

func TestReconcileQualification_NoAutoCreationOfUsers(t *testing.T) {
	entities := newFakeEntities()
	r := New(entities, newLedger(), WithLogger(quietLogger()))

	res, err := r.SyncQualification(context.Background(), kandyQualification())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Updated || res.Skip != SkipUserNotFound || !errors.Is(res.Skip.Err(), ErrUserNotFound) {
		t.Fatalf("expected user_not_found skip, got %+v", res)
	}
	if len(entities.users) != 0 {
		t.Fatalf("no user may be created")
	}
}

func TestReconcileQualification_PartialExtraction(t *testing.T) {
	entities := newFakeEntities(models.UserProfile{ID: "U1", Email: "a@x.com"})
	r := New(entities, newLedger(), WithLogger(quietLogger()))
	q := models.QualificationCheck{
		ID: "Q2",
		Notes: []annotation.Note{
			{Text: `LOCATION:{"district":`},
			{Text: `SERVICES:["Fiber 100Mbps"]`},
		},
		RelatedParty: []models.RelatedParty{{Email: "a@x.com"}},
	}

	res, err := r.SyncQualification(context.Background(), q)
	if err != nil {
		t.Fatalf("malformed annotations are not errors: %v", err)
	}
	if res.Skip != SkipNoAddress || !errors.Is(res.Skip.Err(), ErrNoAddress) {
		t.Fatalf("expected no_address skip, got %+v", res)
	}
}

func TestReconcileQualification_Precedence(t *testing.T) {
	entities := newFakeEntities(
		models.UserProfile{ID: "U1", Email: "a@x.com"},
		models.UserProfile{ID: "U2", Email: "b@y.com"},
	)
	r := New(entities, newLedger(), WithLogger(quietLogger()))
	q := kandyQualification()
	q.Description = "please contact b@y.com"

	if updated, err := r.ReconcileQualification(context.Background(), q); err != nil || !updated {
		t.Fatalf("reconcile: %v %v", updated, err)
	}
	if entities.users["a@x.com"].Address.District != "Kandy" {
		t.Fatalf("relatedParty email must win")
	}
	if !entities.users["b@y.com"].Address.IsEmpty() {
		t.Fatalf("description email must not be touched")
	}
}

func TestReconcileQualification_NoEmail(t *testing.T) {
	r := New(newFakeEntities(), newLedger(), WithLogger(quietLogger()))
	q := kandyQualification()
	q.RelatedParty = nil

	res, err := r.SyncQualification(context.Background(), q)
	if err != nil || res.Skip != SkipNoEmail {
		t.Fatalf("expected no_email skip, got %+v %v", res, err)
	}
}

func TestReconcileQualification_TombstonedAddressStaysRemoved(t *testing.T) {
	entities := newFakeEntities(models.UserProfile{ID: "U1", Email: "a@x.com"})
	ledger := newLedger()
	ledger.MarkDeleted(context.Background(), models.EntityKindUserAddress, "U1", "Q0")
	r := New(entities, ledger, WithLogger(quietLogger()))

	res, err := r.SyncQualification(context.Background(), kandyQualification())
	if err != nil || res.Skip != SkipTombstoned {
		t.Fatalf("expected tombstoned skip, got %+v %v", res, err)
	}
	if !entities.users["a@x.com"].Address.IsEmpty() {
		t.Fatalf("tombstoned address must not be recreated")
	}
}

func TestReconcileQualification_StoreFault(t *testing.T) {
	entities := newFakeEntities()
	entities.findErr = errors.New("connection reset")
	r := New(entities, newLedger(), WithLogger(quietLogger()))

	updated, err := r.ReconcileQualification(context.Background(), kandyQualification())
	if err == nil || updated {
		t.Fatalf("store faults must be returned, got %v %v", updated, err)
	}
}

func TestReconcileOrder_O1Scenario(t *testing.T) {
	entities := newFakeEntities()
	r := New(entities, newLedger(), WithLogger(quietLogger()))

	created, err := r.ReconcileOrder(context.Background(), orderO1())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one product, got %d", len(created))
	}
	p := created[0]
	if p.SourceOrderId == nil || *p.SourceOrderId != "O1" || !p.SyncedFromOrder || p.OriginalQuantity == nil || *p.OriginalQuantity != 1 {
		t.Fatalf("provenance not set: %+v", p)
	}
	if p.Name != "Fiber 100Mbps" || p.ProductOfferingId != "FIB-100" || p.CustomerEmail != "a@x.com" || p.OrderDate == nil {
		t.Fatalf("unexpected product: %+v", p)
	}

	again, err := r.ReconcileOrder(context.Background(), orderO1())
	if err != nil || len(again) != 0 {
		t.Fatalf("second call must create nothing, got %d %v", len(again), err)
	}
	if len(entities.products) != 1 {
		t.Fatalf("duplicate products created: %d", len(entities.products))
	}
}

func TestReconcileOrder_TombstoneSupremacy(t *testing.T) {
	entities := newFakeEntities()
	ledger := newLedger()
	r := New(entities, ledger, WithLogger(quietLogger()))
	ctx := context.Background()

	created, _ := r.ReconcileOrder(ctx, orderO1())
	ledger.MarkDeleted(ctx, models.EntityKindInventoryProduct, created[0].ID, "O1")

	// even with the synced marker gone, the tombstone alone suppresses recreation
	fresh := tombstone.NewStore(tombstone.NewMemoryBackend(), quietLogger())
	fresh.MarkDeleted(ctx, models.EntityKindInventoryProduct, created[0].ID, "O1")
	r2 := New(entities, fresh, WithLogger(quietLogger()))
	for i := 0; i < 3; i++ {
		res, err := r2.SyncOrder(ctx, orderO1())
		if err != nil || len(res.Created) != 0 || res.Skip != SkipTombstoned {
			t.Fatalf("pass %d: tombstoned order must not be recreated, got %+v %v", i, res, err)
		}
	}
	if len(entities.products) != 1 {
		t.Fatalf("expected no new products, got %d", len(entities.products))
	}

	if err := fresh.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if created, err := r2.ReconcileOrder(ctx, orderO1()); err != nil || len(created) != 1 {
		t.Fatalf("clear history must re-enable sync, got %d %v", len(created), err)
	}
}

func TestReconcileOrder_AddressTombstoneWithSameIdDoesNotBlock(t *testing.T) {
	entities := newFakeEntities()
	ledger := newLedger()
	r := New(entities, ledger, WithLogger(quietLogger()))
	ctx := context.Background()

	// qualification "O1" fed a user address that an operator removed
	ledger.MarkDeleted(ctx, models.EntityKindUserAddress, "U1", "O1")

	res, err := r.SyncOrder(ctx, orderO1())
	if err != nil || res.Skip != SkipNone || len(res.Created) != 1 {
		t.Fatalf("order O1 must sync despite the address tombstone, got %+v %v", res, err)
	}
}

func TestReconcileOrder_ZeroValidLinesIsNotMarked(t *testing.T) {
	entities := newFakeEntities()
	ledger := newLedger()
	r := New(entities, ledger, WithLogger(quietLogger()))
	ctx := context.Background()

	o := orderO1()
	o.Items = []models.OrderItem{{Quantity: 2}}
	res, err := r.SyncOrder(ctx, o)
	if err != nil || res.Skip != SkipNoValidLines || len(res.Rejected) != 1 {
		t.Fatalf("expected no_valid_lines skip, got %+v %v", res, err)
	}
	if ledger.WasSynced(ctx, "O1") {
		t.Fatalf("an order without valid lines must not be marked")
	}

	o.Items = []models.OrderItem{{OfferingName: "Router", Quantity: 0}}
	created, err := r.ReconcileOrder(ctx, o)
	if err != nil || len(created) != 1 || created[0].Quantity != 1 {
		t.Fatalf("corrected order must sync with quantity 1, got %+v %v", created, err)
	}
}

func TestReconcileOrder_PartialItemsSyncAsUnit(t *testing.T) {
	entities := newFakeEntities()
	r := New(entities, newLedger(), WithLogger(quietLogger()))
	o := orderO1()
	o.Items = append(o.Items, models.OrderItem{}, models.OrderItem{OfferingId: "SIM-1", Quantity: 2})

	res, err := r.SyncOrder(context.Background(), o)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(res.Created) != 2 || len(res.Rejected) != 1 || res.Rejected[0] != 1 {
		t.Fatalf("expected 2 products and item 1 rejected, got %+v", res)
	}
	if res.Created[1].Name != "Offering SIM-1" || *res.Created[1].OriginalQuantity != 2 {
		t.Fatalf("unexpected second product: %+v", res.Created[1])
	}
}

func TestReconcileOrder_NotCompleted(t *testing.T) {
	r := New(newFakeEntities(), newLedger(), WithLogger(quietLogger()))
	o := orderO1()
	o.State = models.OrderStateInProgress
	res, err := r.SyncOrder(context.Background(), o)
	if err != nil || res.Skip != SkipNotCompleted {
		t.Fatalf("expected not_completed skip, got %+v %v", res, err)
	}
}

func TestReconcileOrder_CreateFailureReleasesClaim(t *testing.T) {
	entities := newFakeEntities()
	entities.createErr = errors.New("deadlock")
	ledger := newLedger()
	r := New(entities, ledger, WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := r.ReconcileOrder(ctx, orderO1()); err == nil {
		t.Fatalf("expected create error")
	}
	if ledger.WasSynced(ctx, "O1") {
		t.Fatalf("failed order must not be marked synced")
	}

	entities.createErr = nil
	created, err := r.ReconcileOrder(ctx, orderO1())
	if err != nil || len(created) != 1 {
		t.Fatalf("released claim must be retried, got %d %v", len(created), err)
	}
}

type refusingLocker struct{}

func (refusingLocker) Obtain(context.Context, string) (func(), error) {
	return nil, ErrLockNotObtained
}

func TestReconcileOrder_LockIsBestEffort(t *testing.T) {
	entities := newFakeEntities()
	r := New(entities, newLedger(), WithLogger(quietLogger()), WithLocker(refusingLocker{}))

	created, err := r.ReconcileOrder(context.Background(), orderO1())
	if err != nil || len(created) != 1 {
		t.Fatalf("a missing lock must not block sync, got %d %v", len(created), err)
	}
}

func TestReconcileOrder_ConcurrentRetriesCreateOnce(t *testing.T) {
	entities := newFakeEntities()
	r := New(entities, newLedger(), WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ReconcileOrder(context.Background(), orderO1()); err != nil {
				t.Errorf("reconcile: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(entities.products) != 1 {
		t.Fatalf("expected exactly 1 product, got %d", len(entities.products))
	}
}
