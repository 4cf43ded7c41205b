package dealership

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func testStore() *Store {
	return NewMemoryStore(SeedCars())
}

func TestListCars_DefaultExcludesSold(t *testing.T) {
	s := testStore()

	cars := s.ListCars(Filter{})
	for _, c := range cars {
		if c.Status == CarSold {
			t.Errorf("default listing returned sold car %s", c.ID)
		}
	}
	if len(cars) != len(SeedCars())-1 {
		t.Errorf("got %d cars, want %d", len(cars), len(SeedCars())-1)
	}
}

func TestListCars_ConjunctiveCaseInsensitive(t *testing.T) {
	s := testStore()

	cars := s.ListCars(Filter{Make: "DACIA", Engine: "EV"})
	if len(cars) != 1 {
		t.Fatalf("got %d cars, want 1", len(cars))
	}
	if cars[0].Model != "Spring" {
		t.Errorf("got %s, want Spring", cars[0].Model)
	}
}

func TestListCars_ElectricOnly(t *testing.T) {
	s := testStore()

	cars := s.ListCars(Filter{Engine: "ev"})
	if len(cars) == 0 {
		t.Fatal("no electric cars found")
	}
	for _, c := range cars {
		if c.Engine != EngineEV {
			t.Errorf("car %s has engine %s", c.ID, c.Engine)
		}
	}
}

func TestListCars_StatusFilterOverridesDefault(t *testing.T) {
	s := testStore()

	cars := s.ListCars(Filter{Status: "sold"})
	if len(cars) != 1 {
		t.Fatalf("got %d sold cars, want 1", len(cars))
	}
	if cars[0].ID != "car-008" {
		t.Errorf("got %s, want car-008", cars[0].ID)
	}
}

func TestQuote_Rounding(t *testing.T) {
	s := NewMemoryStore([]Car{
		{ID: "c1", Make: "Test", Model: "One", Year: 2024, Engine: EnginePetrol, BasePrice: 19999, Status: CarAvailable},
	})

	q, err := s.Quote("c1", 7)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// 19999 * 0.93 = 18599.07
	if q.FinalPrice != 18599 {
		t.Errorf("final price = %d, want 18599", q.FinalPrice)
	}
	if q.Currency != "EUR" {
		t.Errorf("currency = %s, want EUR", q.Currency)
	}
}

func TestQuote_Idempotent(t *testing.T) {
	s := testStore()

	first, err := s.Quote("car-001", 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	second, err := s.Quote("car-001", 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if first != second {
		t.Errorf("quotes differ: %+v vs %+v", first, second)
	}
}

func TestQuote_DiscountBounds(t *testing.T) {
	s := testStore()

	for _, pct := range []float64{0, 30} {
		if _, err := s.Quote("car-001", pct); err != nil {
			t.Errorf("discount %g rejected: %v", pct, err)
		}
	}
	for _, pct := range []float64{-1, 30.5, 31, 100} {
		if _, err := s.Quote("car-001", pct); err == nil {
			t.Errorf("discount %g accepted", pct)
		}
	}
}

func TestQuote_InvalidDiscountRejectedBeforeLookup(t *testing.T) {
	s := testStore()

	_, err := s.Quote("no-such-car", 50)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrCarNotFound) {
		t.Error("discount validation should run before the car lookup")
	}
}

func TestCreateOrder_DoubleSell(t *testing.T) {
	s := testStore()

	order, err := s.CreateOrder("car-001", "Ana Pop", 13000)
	if err != nil {
		t.Fatalf("first order: %v", err)
	}
	if !strings.HasPrefix(order.OrderID, "ord_") {
		t.Errorf("order id %q missing ord_ prefix", order.OrderID)
	}
	if order.Status != OrderCreated {
		t.Errorf("status = %s, want created", order.Status)
	}

	car, err := s.FindCar("car-001")
	if err != nil {
		t.Fatalf("find car: %v", err)
	}
	if car.Status != CarSold {
		t.Errorf("car status = %s, want sold", car.Status)
	}

	_, err = s.CreateOrder("car-001", "Ion Ionescu", 13500)
	if !errors.Is(err, ErrCarSold) {
		t.Errorf("second order error = %v, want ErrCarSold", err)
	}
	if got := len(s.ListOrders("")); got != 1 {
		t.Errorf("order count = %d, want 1", got)
	}
}

func TestCreateOrder_UnknownCar(t *testing.T) {
	s := testStore()

	_, err := s.CreateOrder("car-999", "Ana Pop", 10000)
	if !errors.Is(err, ErrCarNotFound) {
		t.Errorf("error = %v, want ErrCarNotFound", err)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	s := testStore()

	if _, err := s.CreateOrder("car-001", "", 10000); err == nil {
		t.Error("empty customer name accepted")
	}
	if _, err := s.CreateOrder("car-001", "Ana Pop", 0); err == nil {
		t.Error("zero price accepted")
	}
}

func TestCreateOrder_Concurrent(t *testing.T) {
	s := testStore()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateOrder("car-002", "Racer", 18000)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Errorf("%d orders succeeded, want exactly 1", ok)
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := testStore()

	order, err := s.CreateOrder("car-003", "Ana Pop", 20000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateOrderStatus(order.OrderID, OrderConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, err := s.GetOrder(order.OrderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != OrderConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}

	confirmed := s.ListOrders(OrderConfirmed)
	if len(confirmed) != 1 {
		t.Errorf("confirmed orders = %d, want 1", len(confirmed))
	}
}

func TestOpen_SeedsAndReloads(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dir, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cars.json")); err != nil {
		t.Fatalf("cars.json not written: %v", err)
	}

	if _, err := s.CreateOrder("car-001", "Ana Pop", 13000); err != nil {
		t.Fatalf("order: %v", err)
	}

	reopened, err := Open(dir, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	car, err := reopened.FindCar("car-001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if car.Status != CarSold {
		t.Errorf("persisted status = %s, want sold", car.Status)
	}
	if got := len(reopened.ListOrders("")); got != 1 {
		t.Errorf("persisted orders = %d, want 1", got)
	}
}

func TestOpen_RepairsHalfWrittenSale(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dir, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.CreateOrder("car-001", "Ana Pop", 13000); err != nil {
		t.Fatalf("order: %v", err)
	}
	// Simulate a crash after the order write but before the status
	// flip reached disk.
	if err := s.UpdateCarStatus("car-001", CarAvailable); err != nil {
		t.Fatalf("reset: %v", err)
	}

	reopened, err := Open(dir, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	car, err := reopened.FindCar("car-001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if car.Status != CarSold {
		t.Errorf("status after repair = %s, want sold", car.Status)
	}
}

func TestQuotationPrompt(t *testing.T) {
	s := testStore()

	text := s.QuotationPrompt("car-001", "Ana Pop", "10")
	if !strings.Contains(text, `"Ana Pop"`) {
		t.Errorf("prompt missing customer name: %s", text)
	}
	if !strings.Contains(text, "discount 10%") {
		t.Errorf("prompt missing discount: %s", text)
	}
	if !strings.Contains(text, "final €12510") {
		t.Errorf("prompt missing final price: %s", text)
	}
}

func TestQuotationPrompt_ClampsBadDiscount(t *testing.T) {
	s := testStore()

	for _, bad := range []string{"abc", "-5", "31", ""} {
		text := s.QuotationPrompt("car-001", "Ana Pop", bad)
		if !strings.Contains(text, "discount 0%") {
			t.Errorf("discount %q did not clamp to 0: %s", bad, text)
		}
	}
}

func TestQuotationPrompt_UnknownCar(t *testing.T) {
	s := testStore()

	text := s.QuotationPrompt("car-999", "Ana Pop", "10")
	if !strings.Contains(text, "Car: UNKNOWN.") {
		t.Errorf("prompt missing unknown marker: %s", text)
	}
}
