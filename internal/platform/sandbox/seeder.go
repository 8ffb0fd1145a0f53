// Package sandbox seeds a database with reproducible demo data: vendors,
// their stock (some of it below minimum so the reorder flow has something to
// do), patients and a year of financial records.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/dashboard/internal/domain/financial"
	"github.com/clinic/dashboard/internal/domain/identity"
	"github.com/clinic/dashboard/internal/domain/inventory"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	VendorCount       int   `json:"vendorCount"`
	ItemsPerVendor    int   `json:"itemsPerVendor"`
	LowStockPerVendor int   `json:"lowStockPerVendor"`
	PatientCount      int   `json:"patientCount"`
	VisitsPerPatient  int   `json:"visitsPerPatient"`
	Months            int   `json:"months"`
	Seed              int64 `json:"seed"`
}

// DefaultSeedConfig returns a SeedConfig sized for a local demo.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		VendorCount:       3,
		ItemsPerVendor:    5,
		LowStockPerVendor: 2,
		PatientCount:      25,
		VisitsPerPatient:  3,
		Months:            12,
		Seed:              1,
	}
}

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Vendors    int           `json:"vendors"`
	StockItems int           `json:"stockItems"`
	LowStock   int           `json:"lowStock"`
	Patients   int           `json:"patients"`
	Records    int           `json:"records"`
	Duration   time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Pools
// ---------------------------------------------------------------------------

type supply struct {
	Name  string
	Price string
}

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "William", "Susan", "Richard", "Jessica",
		"Joseph", "Sarah", "Thomas", "Karen", "Daniel", "Emily", "Samuel", "Anna",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Martinez", "Wilson", "Anderson", "Taylor", "Moore", "Jackson",
		"Lee", "Thompson", "White", "Harris", "Clark", "Walker", "Young", "King",
	}
	streets = []string{
		"123 Main St", "456 Oak Ave", "789 Elm St", "321 Pine Rd",
		"654 Maple Dr", "987 Cedar Ln", "147 Birch Blvd", "258 Walnut Way",
	}
	vendorNames = []string{
		"MedSupply Co", "Northside Pharma", "CarePoint Distribution",
		"Summit Surgical", "Beacon Lab Supplies", "Valley Medical Wholesale",
	}
	supplies = []supply{
		{"Nitrile gloves (box of 100)", "8.90"},
		{"Sterile gauze pads", "4.25"},
		{"Alcohol prep pads", "3.10"},
		{"Disposable syringes 5ml", "12.40"},
		{"Surgical masks (box of 50)", "6.75"},
		{"Adhesive bandages", "2.95"},
		{"Saline solution 500ml", "5.60"},
		{"Tongue depressors", "1.80"},
		{"Exam table paper roll", "9.20"},
		{"Blood collection tubes", "14.50"},
		{"Cotton swabs", "2.10"},
		{"Digital thermometer covers", "7.35"},
	}
	visitKinds = []supply{
		{"Consultation", "85.00"},
		{"Follow-up visit", "55.00"},
		{"Vaccination", "40.00"},
		{"Lab work", "120.00"},
	}
	overheads = []supply{
		{"Rent", "2400.00"},
		{"Utilities", "310.00"},
		{"Cleaning service", "450.00"},
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic demo entities. The same seed and
// reference time always yield the same data.
type DataGenerator struct {
	rng *rand.Rand
	now time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64, now time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed)), now: now}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomDate(minYear, maxYear int) time.Time {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := time.Month(1 + g.rng.Intn(12))
	d := 1 + g.rng.Intn(28) // safe for all months
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("(%03d) %03d-%04d", 200+g.rng.Intn(800), 200+g.rng.Intn(800), g.rng.Intn(10000))
}

// daysAgo returns a date within the last n days, never today.
func (g *DataGenerator) daysAgo(n int) time.Time {
	d := g.now.AddDate(0, 0, -(1 + g.rng.Intn(n)))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func emailLocal(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", ".", "'", "").Replace(s))
}

// GenerateVendor returns the i-th vendor. Names repeat with a suffix once
// the pool is exhausted.
func (g *DataGenerator) GenerateVendor(i int) *inventory.Vendor {
	name := vendorNames[i%len(vendorNames)]
	if i >= len(vendorNames) {
		name = fmt.Sprintf("%s %d", name, i/len(vendorNames)+1)
	}
	return &inventory.Vendor{
		Name:    name,
		Email:   "orders@" + strings.ReplaceAll(emailLocal(name), ".", "-") + ".example.com",
		Phone:   g.randomPhone(),
		Address: g.pick(streets),
	}
}

// GenerateStockItem returns an item supplied by vendorID. Low items start at
// or below their minimum.
func (g *DataGenerator) GenerateStockItem(vendorID uuid.UUID, low bool) *inventory.StockItem {
	s := supplies[g.rng.Intn(len(supplies))]
	minimum := 10 + g.rng.Intn(20)
	qty := minimum + 1 + g.rng.Intn(60)
	if low {
		qty = g.rng.Intn(minimum + 1)
	}
	return &inventory.StockItem{
		Name:            s.Name,
		Quantity:        qty,
		MinimumQuantity: minimum,
		ReorderQuantity: minimum * 3,
		PricePerUnit:    decimal.RequireFromString(s.Price),
		VendorID:        vendorID,
	}
}

func (g *DataGenerator) GeneratePatient() *identity.Patient {
	first, last := g.pick(firstNames), g.pick(lastNames)
	dob := g.randomDate(1940, 2015)
	gender := "female"
	if g.rng.Intn(2) == 0 {
		gender = "male"
	}
	return &identity.Patient{
		FirstName:   first,
		LastName:    last,
		DateOfBirth: &dob,
		Gender:      gender,
		Email:       fmt.Sprintf("%s.%s%d@example.com", emailLocal(first), emailLocal(last), g.rng.Intn(1000)),
		Phone:       g.randomPhone(),
		Address:     g.pick(streets),
	}
}

// GenerateVisitIncome books a patient visit within the last days.
func (g *DataGenerator) GenerateVisitIncome(patientID uuid.UUID, days int) *financial.Record {
	v := visitKinds[g.rng.Intn(len(visitKinds))]
	return &financial.Record{
		Kind:        financial.KindIncome,
		Category:    "visits",
		Amount:      decimal.RequireFromString(v.Price),
		Description: v.Name,
		PatientID:   &patientID,
		OccurredOn:  g.daysAgo(days),
	}
}

// GenerateOverhead books a monthly running cost on the first of the month
// monthsAgo months back.
func (g *DataGenerator) GenerateOverhead(monthsAgo int, o supply) *financial.Record {
	d := time.Date(g.now.Year(), g.now.Month()-time.Month(monthsAgo), 1, 0, 0, 0, 0, time.UTC)
	return &financial.Record{
		Kind:        financial.KindExpense,
		Category:    "overhead",
		Amount:      decimal.RequireFromString(o.Price),
		Description: o.Name,
		OccurredOn:  d,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type InventoryStore interface {
	CreateVendor(ctx context.Context, v *inventory.Vendor) error
	CreateStockItem(ctx context.Context, item *inventory.StockItem) error
}

type PatientStore interface {
	CreatePatient(ctx context.Context, p *identity.Patient) error
}

type LedgerStore interface {
	CreateRecord(ctx context.Context, r *financial.Record) error
}

// Seeder writes generated data through the domain services so every row
// passes the same validation as API input.
type Seeder struct {
	inventory InventoryStore
	patients  PatientStore
	ledger    LedgerStore
	config    SeedConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSeeder creates a new Seeder with the given config.
func NewSeeder(config SeedConfig, inv InventoryStore, patients PatientStore, ledger LedgerStore, logger zerolog.Logger) *Seeder {
	return &Seeder{
		inventory: inv,
		patients:  patients,
		ledger:    ledger,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Run generates and stores all demo data according to config.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	cfg := s.config
	if cfg.LowStockPerVendor > cfg.ItemsPerVendor {
		return nil, fmt.Errorf("seed: lowStockPerVendor %d exceeds itemsPerVendor %d", cfg.LowStockPerVendor, cfg.ItemsPerVendor)
	}
	gen := NewDataGenerator(cfg.Seed, s.now().UTC())
	result := &SeedResult{}

	for i := 0; i < cfg.VendorCount; i++ {
		v := gen.GenerateVendor(i)
		if err := s.inventory.CreateVendor(ctx, v); err != nil {
			return result, fmt.Errorf("seed vendor %s: %w", v.Name, err)
		}
		result.Vendors++

		for j := 0; j < cfg.ItemsPerVendor; j++ {
			low := j < cfg.LowStockPerVendor
			item := gen.GenerateStockItem(v.ID, low)
			if err := s.inventory.CreateStockItem(ctx, item); err != nil {
				return result, fmt.Errorf("seed stock item %s: %w", item.Name, err)
			}
			result.StockItems++
			if low {
				result.LowStock++
			}
		}
	}

	days := cfg.Months * 30
	if days <= 0 {
		days = 30
	}
	for i := 0; i < cfg.PatientCount; i++ {
		p := gen.GeneratePatient()
		if err := s.patients.CreatePatient(ctx, p); err != nil {
			return result, fmt.Errorf("seed patient %s: %w", p.FullName(), err)
		}
		result.Patients++

		for j := 0; j < cfg.VisitsPerPatient; j++ {
			if err := s.ledger.CreateRecord(ctx, gen.GenerateVisitIncome(p.ID, days)); err != nil {
				return result, fmt.Errorf("seed visit income: %w", err)
			}
			result.Records++
		}
	}

	for m := 1; m <= cfg.Months; m++ {
		for _, o := range overheads {
			if err := s.ledger.CreateRecord(ctx, gen.GenerateOverhead(m, o)); err != nil {
				return result, fmt.Errorf("seed overhead: %w", err)
			}
			result.Records++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("vendors", result.Vendors).
		Int("stock_items", result.StockItems).
		Int("low_stock", result.LowStock).
		Int("patients", result.Patients).
		Int("records", result.Records).
		Dur("duration", result.Duration).
		Msg("demo data seeded")
	return result, nil
}
