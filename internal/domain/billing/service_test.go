package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicsys/clinic/internal/domain/catalog"
	"github.com/clinicsys/clinic/internal/domain/pharmacy"
	"github.com/clinicsys/clinic/internal/domain/prescription"
	"github.com/clinicsys/clinic/internal/domain/visit"
	"github.com/clinicsys/clinic/internal/platform/apperr"
)

// -- Mock Repositories --

type mockBillingRepo struct {
	billings map[uuid.UUID]*Billing
}

func newMockBillingRepo() *mockBillingRepo {
	return &mockBillingRepo{billings: make(map[uuid.UUID]*Billing)}
}

func (m *mockBillingRepo) Create(_ context.Context, b *Billing) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.billings[b.ID] = b
	return nil
}

func (m *mockBillingRepo) GetByID(_ context.Context, id uuid.UUID) (*Billing, error) {
	b, ok := m.billings[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return b, nil
}

func (m *mockBillingRepo) GetByVisit(_ context.Context, visitID uuid.UUID) (*Billing, error) {
	for _, b := range m.billings {
		if b.VisitID == visitID {
			return b, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockBillingRepo) Update(_ context.Context, b *Billing) error {
	m.billings[b.ID] = b
	return nil
}

func (m *mockBillingRepo) List(_ context.Context, status string, limit, offset int) ([]*Billing, int, error) {
	var items []*Billing
	for _, b := range m.billings {
		if status == "" || b.Status == status {
			items = append(items, b)
		}
	}
	return items, len(items), nil
}

func (m *mockBillingRepo) ListUnbilledVisits(_ context.Context, limit, offset int) ([]*visit.Visit, int, error) {
	return nil, 0, nil
}

type mockItemRepo struct {
	items map[uuid.UUID]*BillingItem
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]*BillingItem)}
}

func (m *mockItemRepo) Create(_ context.Context, it *BillingItem) error {
	it.ID = uuid.New()
	it.CreatedAt = time.Now()
	m.items[it.ID] = it
	return nil
}

func (m *mockItemRepo) GetByID(_ context.Context, id uuid.UUID) (*BillingItem, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return it, nil
}

func (m *mockItemRepo) Update(_ context.Context, it *BillingItem) error {
	m.items[it.ID] = it
	return nil
}

func (m *mockItemRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockItemRepo) ListByBilling(_ context.Context, billingID uuid.UUID) ([]*BillingItem, error) {
	var items []*BillingItem
	for _, it := range m.items {
		if it.BillingID == billingID {
			items = append(items, it)
		}
	}
	return items, nil
}

type mockVisitStore struct {
	visits map[uuid.UUID]*visit.Visit
	orders map[uuid.UUID][]*visit.ServiceOrder
}

func newMockVisitStore() *mockVisitStore {
	return &mockVisitStore{
		visits: make(map[uuid.UUID]*visit.Visit),
		orders: make(map[uuid.UUID][]*visit.ServiceOrder),
	}
}

func (m *mockVisitStore) addVisit(status string) *visit.Visit {
	v := &visit.Visit{ID: uuid.New(), PatientID: uuid.New(), AppointmentID: uuid.New(), Status: status}
	m.visits[v.ID] = v
	return v
}

func (m *mockVisitStore) Get(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, apperr.NotFound("visit %s not found", id)
	}
	return v, nil
}

func (m *mockVisitStore) ListOrders(_ context.Context, visitID uuid.UUID) ([]*visit.ServiceOrder, error) {
	return m.orders[visitID], nil
}

type mockCatalog struct {
	services map[uuid.UUID]*catalog.MedicalService
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{services: make(map[uuid.UUID]*catalog.MedicalService)}
}

func (m *mockCatalog) addService(name string, price float64) *catalog.MedicalService {
	svc := &catalog.MedicalService{ID: uuid.New(), Code: name, Name: name, BasePrice: price}
	m.services[svc.ID] = svc
	return svc
}

func (m *mockCatalog) GetMedicalService(_ context.Context, id uuid.UUID) (*catalog.MedicalService, error) {
	svc, ok := m.services[id]
	if !ok {
		return nil, apperr.NotFound("medical service %s not found", id)
	}
	return svc, nil
}

type mockPrescriptionStore struct {
	details map[uuid.UUID]*prescription.Detail
}

func newMockPrescriptionStore() *mockPrescriptionStore {
	return &mockPrescriptionStore{details: make(map[uuid.UUID]*prescription.Detail)}
}

func (m *mockPrescriptionStore) addPrescription(visitID uuid.UUID, items ...*prescription.PrescriptionItem) *prescription.Detail {
	d := &prescription.Detail{
		Prescription: prescription.Prescription{ID: uuid.New(), VisitID: visitID, Status: prescription.StatusDispensed},
		Items:        items,
	}
	m.details[d.ID] = d
	return d
}

func (m *mockPrescriptionStore) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*prescription.Prescription, error) {
	var items []*prescription.Prescription
	for _, d := range m.details {
		if d.VisitID == visitID {
			p := d.Prescription
			items = append(items, &p)
		}
	}
	return items, nil
}

func (m *mockPrescriptionStore) Get(_ context.Context, id uuid.UUID) (*prescription.Detail, error) {
	d, ok := m.details[id]
	if !ok {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	return d, nil
}

type mockStock struct {
	meds map[uuid.UUID]*pharmacy.Medication
}

func newMockStock() *mockStock {
	return &mockStock{meds: make(map[uuid.UUID]*pharmacy.Medication)}
}

func (m *mockStock) GetMedication(_ context.Context, id uuid.UUID) (*pharmacy.Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, apperr.NotFound("medication %s not found", id)
	}
	return med, nil
}

type fixture struct {
	svc           *Service
	billings      *mockBillingRepo
	items         *mockItemRepo
	visits        *mockVisitStore
	catalog       *mockCatalog
	prescriptions *mockPrescriptionStore
	stock         *mockStock
}

func newFixture() *fixture {
	f := &fixture{
		billings:      newMockBillingRepo(),
		items:         newMockItemRepo(),
		visits:        newMockVisitStore(),
		catalog:       newMockCatalog(),
		prescriptions: newMockPrescriptionStore(),
		stock:         newMockStock(),
	}
	f.svc = NewService(nil, f.billings, f.items, f.visits, f.catalog, f.prescriptions, f.stock)
	return f
}

func (f *fixture) order(v *visit.Visit, svc *catalog.MedicalService, status string) *visit.ServiceOrder {
	o := &visit.ServiceOrder{
		ID: uuid.New(), VisitID: v.ID, ServiceID: svc.ID,
		AssignedDoctorID: uuid.New(), Status: status,
	}
	f.visits.orders[v.ID] = append(f.visits.orders[v.ID], o)
	return o
}

func rxItem(name string, qty int64, price float64) *prescription.PrescriptionItem {
	return &prescription.PrescriptionItem{
		ID: uuid.New(), MedicationName: name, Quantity: qty,
		UnitPrice: price, Amount: price * float64(qty),
	}
}

// -- Tests --

func TestGenerateForVisit(t *testing.T) {
	f := newFixture()
	v := f.visits.addVisit(visit.StatusCompleted)
	svc := f.catalog.addService("Ultrasound", 200000)
	f.order(v, svc, visit.OrderCompletedWithResult)
	f.prescriptions.addPrescription(v.ID, rxItem("Ferrovit", 10, 5000))

	d, err := f.svc.GenerateForVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GenerateForVisit() error = %v", err)
	}
	if len(d.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(d.Items))
	}
	if d.ServiceTotal != 200000 {
		t.Errorf("service total = %v, want 200000", d.ServiceTotal)
	}
	if d.MedicationTotal != 50000 {
		t.Errorf("medication total = %v, want 50000", d.MedicationTotal)
	}
	if d.OtherTotal != 0 {
		t.Errorf("other total = %v, want 0", d.OtherTotal)
	}
	if d.TotalAmount != 250000 {
		t.Errorf("total = %v, want 250000", d.TotalAmount)
	}
	if d.Status != StatusUnpaid {
		t.Errorf("status = %s, want UNPAID", d.Status)
	}
}

func TestGenerateForVisit_AlreadyBilled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.visits.addVisit(visit.StatusCompleted)
	svc := f.catalog.addService("Ultrasound", 200000)
	f.order(v, svc, visit.OrderCompleted)

	first, err := f.svc.GenerateForVisit(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.GenerateForVisit(ctx, v.ID)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The first billing is untouched.
	again, err := f.svc.Get(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalAmount != first.TotalAmount || len(again.Items) != len(first.Items) {
		t.Error("failed second generation mutated the first billing")
	}
}

func TestGenerateForVisit_OrderSelection(t *testing.T) {
	f := newFixture()
	v := f.visits.addVisit(visit.StatusCompleted)
	priced := f.catalog.addService("Ultrasound", 150000)
	unpriced := f.catalog.addService("Checkup", 0)
	f.order(v, priced, visit.OrderCompleted)
	f.order(v, unpriced, visit.OrderCompleted)
	f.order(v, priced, visit.OrderCancelled)
	f.order(v, priced, visit.OrderPending)

	d, err := f.svc.GenerateForVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GenerateForVisit() error = %v", err)
	}
	// Only the resolved, non-cancelled, priced order produces a line.
	if len(d.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(d.Items))
	}
	if d.TotalAmount != 150000 {
		t.Errorf("total = %v, want 150000", d.TotalAmount)
	}
}

func TestGenerateForVisit_SnapshotFallback(t *testing.T) {
	f := newFixture()
	v := f.visits.addVisit(visit.StatusCompleted)
	med := &pharmacy.Medication{ID: uuid.New(), Code: "FER", Name: "Ferrovit", UnitPrice: 5000}
	f.stock.meds[med.ID] = med

	incomplete := &prescription.PrescriptionItem{
		ID: uuid.New(), MedicationID: &med.ID, Quantity: 4,
	}
	f.prescriptions.addPrescription(v.ID, incomplete)

	d, err := f.svc.GenerateForVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GenerateForVisit() error = %v", err)
	}
	if len(d.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(d.Items))
	}
	it := d.Items[0]
	if it.Description != "Ferrovit" {
		t.Errorf("description = %q, want medication name fallback", it.Description)
	}
	if it.UnitPrice != 5000 || it.Amount != 20000 {
		t.Errorf("price fallback: unit=%v amount=%v, want 5000/20000", it.UnitPrice, it.Amount)
	}
}

func TestRecalculateTotals_Idempotent(t *testing.T) {
	b := &Billing{}
	items := []*BillingItem{
		{ItemType: ItemService, Amount: 200000},
		{ItemType: ItemMedication, Amount: 50000},
		{ItemType: ItemOther, Amount: 1234.56},
	}
	recalculateTotals(b, items)
	first := *b
	recalculateTotals(b, items)
	if *b != first {
		t.Errorf("recalculateTotals not idempotent: %+v vs %+v", first, *b)
	}
	if b.TotalAmount != 251234.56 {
		t.Errorf("total = %v, want 251234.56", b.TotalAmount)
	}
}

func TestManualItems(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.visits.addVisit(visit.StatusCompleted)
	svc := f.catalog.addService("Ultrasound", 200000)
	f.order(v, svc, visit.OrderCompleted)
	d, err := f.svc.GenerateForVisit(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Add.
	d2, err := f.svc.AddManualItem(ctx, d.ID, ItemInput{
		ItemType: ItemOther, Description: "Gauze", Quantity: 2, UnitPrice: 7500,
	})
	if err != nil {
		t.Fatalf("AddManualItem() error = %v", err)
	}
	if d2.OtherTotal != 15000 || d2.TotalAmount != 215000 {
		t.Errorf("after add: other=%v total=%v, want 15000/215000", d2.OtherTotal, d2.TotalAmount)
	}

	var manual *BillingItem
	for _, it := range d2.Items {
		if it.ItemType == ItemOther {
			manual = it
		}
	}
	if manual == nil {
		t.Fatal("manual item not present")
	}

	// Update recomputes the amount before totals.
	d3, err := f.svc.UpdateItem(ctx, d.ID, manual.ID, ItemInput{
		ItemType: ItemOther, Description: "Gauze", Quantity: 3, UnitPrice: 7500,
	})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if d3.OtherTotal != 22500 || d3.TotalAmount != 222500 {
		t.Errorf("after update: other=%v total=%v, want 22500/222500", d3.OtherTotal, d3.TotalAmount)
	}

	// Delete restores the original totals.
	d4, err := f.svc.DeleteItem(ctx, d.ID, manual.ID)
	if err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if d4.OtherTotal != 0 || d4.TotalAmount != 200000 {
		t.Errorf("after delete: other=%v total=%v, want 0/200000", d4.OtherTotal, d4.TotalAmount)
	}
}

func TestUpdateItem_OwnershipCheck(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v1 := f.visits.addVisit(visit.StatusCompleted)
	v2 := f.visits.addVisit(visit.StatusCompleted)
	b1, err := f.svc.GenerateForVisit(ctx, v1.ID)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := f.svc.GenerateForVisit(ctx, v2.ID)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := f.svc.AddManualItem(ctx, b2.ID, ItemInput{
		ItemType: ItemOther, Description: "Gauze", Quantity: 1, UnitPrice: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.UpdateItem(ctx, b1.ID, d2.Items[0].ID, ItemInput{
		ItemType: ItemOther, Description: "Gauze", Quantity: 1, UnitPrice: 100,
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for foreign item, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.visits.addVisit(visit.StatusCompleted)
	d, err := f.svc.GenerateForVisit(ctx, v.ID)
	if err != nil {
		t.Fatal(err)
	}

	method := "CASH"
	b, err := f.svc.UpdateStatus(ctx, d.ID, StatusPaid, &method, nil)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if b.Status != StatusPaid || b.PaymentMethod == nil || *b.PaymentMethod != "CASH" {
		t.Errorf("billing not settled: %+v", b)
	}

	// Paid billings are immutable.
	_, err = f.svc.UpdateStatus(ctx, d.ID, StatusCancelled, nil, nil)
	if !apperr.IsKind(err, apperr.KindInvariant) {
		t.Errorf("expected invariant error, got %v", err)
	}
	_, err = f.svc.AddManualItem(ctx, d.ID, ItemInput{
		ItemType: ItemOther, Description: "Gauze", Quantity: 1, UnitPrice: 100,
	})
	if !apperr.IsKind(err, apperr.KindInvariant) {
		t.Errorf("expected invariant error adding item to paid billing, got %v", err)
	}
}
