package dealership

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCarNotFound is returned for car ids absent from the inventory.
	ErrCarNotFound = errors.New("car not found")
	// ErrCarSold is returned when ordering a car that is already sold.
	ErrCarSold = errors.New("car is already sold")
	// ErrOrderNotFound is returned for unknown order ids.
	ErrOrderNotFound = errors.New("order not found")
)

// Store holds the inventory and order book. All mutations run under one
// mutex so an order write and the matching status flip form a single
// logical step. When dir is empty the store is memory-only.
type Store struct {
	mu     sync.Mutex
	dir    string
	cars   []Car
	orders []Order
	logger *slog.Logger
	now    func() time.Time
}

// Open loads (or seeds) the store from dir/cars.json and dir/orders.json.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		dir:    dir,
		logger: logger.With("component", "dealership"),
		now:    time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.repair()
	return s, nil
}

// NewMemoryStore builds a store seeded with the given cars, without file
// persistence.
func NewMemoryStore(cars []Car) *Store {
	s := &Store{
		now:  time.Now,
		cars: append([]Car(nil), cars...),
	}
	s.logger = slog.Default().With("component", "dealership")
	return s
}

func (s *Store) load() error {
	carsPath := filepath.Join(s.dir, "cars.json")
	data, err := os.ReadFile(carsPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.cars); err != nil {
			return fmt.Errorf("parse %s: %w", carsPath, err)
		}
	case os.IsNotExist(err):
		s.cars = SeedCars()
		if err := s.saveCars(); err != nil {
			return err
		}
		s.logger.Info("seeded inventory", "cars", len(s.cars), "path", carsPath)
	default:
		return fmt.Errorf("read %s: %w", carsPath, err)
	}

	ordersPath := filepath.Join(s.dir, "orders.json")
	data, err = os.ReadFile(ordersPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.orders); err != nil {
			return fmt.Errorf("parse %s: %w", ordersPath, err)
		}
	case os.IsNotExist(err):
		s.orders = []Order{}
		if err := s.saveOrders(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("read %s: %w", ordersPath, err)
	}
	return nil
}

// repair marks as sold any available car that a persisted order already
// references. Recovers from a crash between the order write and the
// status write.
func (s *Store) repair() {
	for _, o := range s.orders {
		if o.Status == OrderCancelled {
			continue
		}
		for i := range s.cars {
			if s.cars[i].ID == o.CarID && s.cars[i].Status == CarAvailable {
				s.logger.Warn("repairing sold status from order book",
					"car_id", o.CarID, "order_id", o.OrderID)
				s.cars[i].Status = CarSold
				_ = s.saveCars()
			}
		}
	}
}

func (s *Store) saveCars() error {
	if s.dir == "" {
		return nil
	}
	return writeJSON(filepath.Join(s.dir, "cars.json"), s.cars)
}

func (s *Store) saveOrders() error {
	if s.dir == "" {
		return nil
	}
	return writeJSON(filepath.Join(s.dir, "orders.json"), s.orders)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// FindCar returns the car with the given id.
func (s *Store) FindCar(id string) (Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cars {
		if c.ID == id {
			return c, nil
		}
	}
	return Car{}, fmt.Errorf("%w: %s", ErrCarNotFound, id)
}

// ListCars returns cars matching every set filter field. Matching is
// case-insensitive; sold cars are excluded unless the filter names them.
func (s *Store) ListCars(f Filter) []Car {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Car
	for _, c := range s.cars {
		if !matches(c, f) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matches(c Car, f Filter) bool {
	if f.Make != "" && !strings.EqualFold(c.Make, f.Make) {
		return false
	}
	if f.Model != "" && !strings.EqualFold(c.Model, f.Model) {
		return false
	}
	if f.Year != 0 && c.Year != f.Year {
		return false
	}
	if f.Engine != "" && !strings.EqualFold(string(c.Engine), f.Engine) {
		return false
	}
	if f.Trim != "" && !strings.EqualFold(c.Trim, f.Trim) {
		return false
	}
	if f.Status != "" {
		return strings.EqualFold(string(c.Status), f.Status)
	}
	if !f.IncludeSold && c.Status == CarSold {
		return false
	}
	return true
}

// UpdateCarStatus sets the status of a car.
func (s *Store) UpdateCarStatus(id string, status CarStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCarStatusLocked(id, status)
}

func (s *Store) updateCarStatusLocked(id string, status CarStatus) error {
	for i := range s.cars {
		if s.cars[i].ID == id {
			s.cars[i].Status = status
			return s.saveCars()
		}
	}
	return fmt.Errorf("%w: %s", ErrCarNotFound, id)
}

// Quote prices a car after the given percentage discount. Discounts
// outside [0, 30] are rejected before any price computation.
func (s *Store) Quote(carID string, discountPct float64) (Quotation, error) {
	if discountPct < 0 || discountPct > 30 {
		return Quotation{}, fmt.Errorf("discountPct must be between 0 and 30, got %g", discountPct)
	}
	car, err := s.FindCar(carID)
	if err != nil {
		return Quotation{}, err
	}
	final := int(roundHalfAway(float64(car.BasePrice) * (1 - discountPct/100)))
	return Quotation{
		CarID:       car.ID,
		BasePrice:   car.BasePrice,
		DiscountPct: discountPct,
		FinalPrice:  final,
		Currency:    "EUR",
	}, nil
}

func roundHalfAway(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}

// CreateOrder records a sale and marks the car sold. The second order
// for the same car fails with ErrCarSold; a car is sold after exactly
// one success.
func (s *Store) CreateOrder(carID, customerName string, agreedPrice int) (Order, error) {
	if customerName == "" {
		return Order{}, errors.New("customerName is required")
	}
	if agreedPrice < 1 {
		return Order{}, errors.New("agreedPrice must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var car *Car
	for i := range s.cars {
		if s.cars[i].ID == carID {
			car = &s.cars[i]
			break
		}
	}
	if car == nil {
		return Order{}, fmt.Errorf("invalid carId: %w: %s", ErrCarNotFound, carID)
	}
	if car.Status == CarSold {
		return Order{}, fmt.Errorf("%w: %s", ErrCarSold, carID)
	}

	now := s.now()
	order := Order{
		OrderID:      "ord_" + strconv.FormatInt(now.UnixMilli(), 36),
		CarID:        carID,
		CustomerName: customerName,
		AgreedPrice:  agreedPrice,
		Status:       OrderCreated,
		CreatedAt:    now,
	}
	s.orders = append(s.orders, order)
	if err := s.saveOrders(); err != nil {
		s.orders = s.orders[:len(s.orders)-1]
		return Order{}, err
	}
	// Status flip follows the order write so the order book never
	// references a car the flip already hid.
	if err := s.updateCarStatusLocked(carID, CarSold); err != nil {
		return Order{}, err
	}
	s.logger.Info("order created", "order_id", order.OrderID, "car_id", carID)
	return order, nil
}

// ListOrders returns orders, optionally filtered by status.
func (s *Store) ListOrders(status OrderStatus) []Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	return out
}

// GetOrder returns the order with the given id.
func (s *Store) GetOrder(id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderID == id {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

// UpdateOrderStatus moves an order through its lifecycle.
func (s *Store) UpdateOrderStatus(id string, status OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].OrderID == id {
			s.orders[i].Status = status
			return s.saveOrders()
		}
	}
	return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

// SeedCars is the default showroom inventory.
func SeedCars() []Car {
	return []Car{
		{ID: "car-001", Make: "Dacia", Model: "Sandero", Year: 2024, Engine: EnginePetrol, Trim: "Comfort", BasePrice: 13900, Status: CarAvailable},
		{ID: "car-002", Make: "Dacia", Model: "Spring", Year: 2024, Engine: EngineEV, Trim: "Essential", BasePrice: 18900, Status: CarAvailable},
		{ID: "car-003", Make: "Renault", Model: "Clio", Year: 2023, Engine: EngineHybrid, Trim: "Techno", BasePrice: 21500, Status: CarAvailable},
		{ID: "car-004", Make: "Renault", Model: "Megane E-Tech", Year: 2024, Engine: EngineEV, Trim: "Iconic", BasePrice: 38900, Status: CarAvailable},
		{ID: "car-005", Make: "Volkswagen", Model: "Golf", Year: 2023, Engine: EngineDiesel, Trim: "Life", BasePrice: 28200, Status: CarAvailable},
		{ID: "car-006", Make: "Volkswagen", Model: "ID.4", Year: 2024, Engine: EngineEV, Trim: "Pro", BasePrice: 42700, Status: CarAvailable},
		{ID: "car-007", Make: "Toyota", Model: "Corolla", Year: 2024, Engine: EngineHybrid, Trim: "Style", BasePrice: 27400, Status: CarAvailable},
		{ID: "car-008", Make: "BMW", Model: "320i", Year: 2022, Engine: EnginePetrol, Trim: "M Sport", BasePrice: 45900, Status: CarSold},
	}
}
