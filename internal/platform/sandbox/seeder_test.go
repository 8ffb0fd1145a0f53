package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/domain/financial"
	"github.com/clinic/dashboard/internal/domain/identity"
	"github.com/clinic/dashboard/internal/domain/inventory"
)

var refTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// memoryStore captures everything the seeder writes.
type memoryStore struct {
	vendors  []*inventory.Vendor
	items    []*inventory.StockItem
	patients []*identity.Patient
	records  []*financial.Record
	failOn   string
}

func (m *memoryStore) CreateVendor(_ context.Context, v *inventory.Vendor) error {
	if m.failOn == "vendor" {
		return errors.New("boom")
	}
	v.ID = uuid.New()
	m.vendors = append(m.vendors, v)
	return nil
}

func (m *memoryStore) CreateStockItem(_ context.Context, item *inventory.StockItem) error {
	item.ID = uuid.New()
	m.items = append(m.items, item)
	return nil
}

func (m *memoryStore) CreatePatient(_ context.Context, p *identity.Patient) error {
	p.ID = uuid.New()
	m.patients = append(m.patients, p)
	return nil
}

func (m *memoryStore) CreateRecord(_ context.Context, r *financial.Record) error {
	if m.failOn == "record" {
		return errors.New("boom")
	}
	m.records = append(m.records, r)
	return nil
}

func runSeeder(t *testing.T, cfg SeedConfig) (*memoryStore, *SeedResult) {
	t.Helper()
	store := &memoryStore{}
	s := NewSeeder(cfg, store, store, store, zerolog.Nop())
	s.now = func() time.Time { return refTime }
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store, res
}

func TestSeeder_Counts(t *testing.T) {
	cfg := DefaultSeedConfig()
	store, res := runSeeder(t, cfg)

	if res.Vendors != cfg.VendorCount || len(store.vendors) != cfg.VendorCount {
		t.Errorf("expected %d vendors, got %d", cfg.VendorCount, res.Vendors)
	}
	if res.StockItems != cfg.VendorCount*cfg.ItemsPerVendor {
		t.Errorf("unexpected stock item count %d", res.StockItems)
	}
	if res.Patients != cfg.PatientCount {
		t.Errorf("unexpected patient count %d", res.Patients)
	}
	wantRecords := cfg.PatientCount*cfg.VisitsPerPatient + cfg.Months*len(overheads)
	if res.Records != wantRecords || len(store.records) != wantRecords {
		t.Errorf("expected %d records, got %d", wantRecords, res.Records)
	}
}

func TestSeeder_EachVendorHasReorderableStock(t *testing.T) {
	cfg := DefaultSeedConfig()
	store, res := runSeeder(t, cfg)

	if res.LowStock != cfg.VendorCount*cfg.LowStockPerVendor {
		t.Errorf("unexpected low stock count %d", res.LowStock)
	}
	for _, v := range store.vendors {
		var low []uuid.UUID
		for _, item := range store.items {
			if item.VendorID == v.ID && inventory.IsLowStock(item) {
				low = append(low, item.ID)
			}
		}
		if len(low) != cfg.LowStockPerVendor {
			t.Errorf("vendor %s: expected %d low items, got %d", v.Name, cfg.LowStockPerVendor, len(low))
		}
		if gate := inventory.EvaluateReorder(low, store.items); !gate.Enabled() {
			t.Errorf("vendor %s: expected reorder gate enabled, got %s", v.Name, gate.Decision)
		}
	}
}

func TestSeeder_Deterministic(t *testing.T) {
	a, _ := runSeeder(t, DefaultSeedConfig())
	b, _ := runSeeder(t, DefaultSeedConfig())

	for i := range a.patients {
		if a.patients[i].FullName() != b.patients[i].FullName() || a.patients[i].Email != b.patients[i].Email {
			t.Fatalf("patient %d differs between runs", i)
		}
	}
	for i := range a.items {
		if a.items[i].Name != b.items[i].Name || a.items[i].Quantity != b.items[i].Quantity {
			t.Fatalf("stock item %d differs between runs", i)
		}
	}
}

func TestSeeder_RecordsAreInThePast(t *testing.T) {
	store, _ := runSeeder(t, DefaultSeedConfig())
	oldest := refTime.AddDate(0, -13, 0)
	for _, r := range store.records {
		if !r.OccurredOn.Before(refTime) || r.OccurredOn.Before(oldest) {
			t.Errorf("record %q dated %s outside the seeded window", r.Description, r.OccurredOn)
		}
		if r.Kind == financial.KindIncome && r.PatientID == nil {
			t.Errorf("visit income %q has no patient", r.Description)
		}
	}
}

func TestSeeder_InvalidConfig(t *testing.T) {
	cfg := DefaultSeedConfig()
	cfg.LowStockPerVendor = cfg.ItemsPerVendor + 1
	store := &memoryStore{}
	if _, err := NewSeeder(cfg, store, store, store, zerolog.Nop()).Run(context.Background()); err == nil {
		t.Error("expected error for low stock exceeding items")
	}
}

func TestSeeder_StopsOnError(t *testing.T) {
	store := &memoryStore{failOn: "record"}
	res, err := NewSeeder(DefaultSeedConfig(), store, store, store, zerolog.Nop()).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "seed visit income") {
		t.Fatalf("expected visit income error, got %v", err)
	}
	if res.Patients != 1 {
		t.Errorf("expected seeding to stop after the first patient, got %d", res.Patients)
	}
}

func TestDataGenerator_VendorNamesWrap(t *testing.T) {
	g := NewDataGenerator(7, refTime)
	first := g.GenerateVendor(0)
	wrapped := g.GenerateVendor(len(vendorNames))
	if wrapped.Name == first.Name || !strings.HasPrefix(wrapped.Name, first.Name) {
		t.Errorf("expected suffixed name, got %q and %q", first.Name, wrapped.Name)
	}
	if !strings.Contains(wrapped.Email, "@") || strings.Contains(wrapped.Email, " ") {
		t.Errorf("unexpected email %q", wrapped.Email)
	}
}

func TestDataGenerator_StockItem(t *testing.T) {
	g := NewDataGenerator(3, refTime)
	vendor := uuid.New()
	for i := 0; i < 50; i++ {
		low := g.GenerateStockItem(vendor, true)
		if !inventory.IsLowStock(low) {
			t.Fatalf("expected low item, got %d/%d", low.Quantity, low.MinimumQuantity)
		}
		ok := g.GenerateStockItem(vendor, false)
		if inventory.IsLowStock(ok) || ok.ReorderQuantity <= 0 {
			t.Fatalf("unexpected item %+v", ok)
		}
	}
}
