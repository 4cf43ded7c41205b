// Package dealership holds the car inventory and order book behind the
// showroom's MCP tools.
package dealership

import "time"

// Engine is a car powertrain kind.
type Engine string

const (
	EnginePetrol Engine = "petrol"
	EngineDiesel Engine = "diesel"
	EngineHybrid Engine = "hybrid"
	EngineEV     Engine = "ev"
)

// CarStatus tracks whether a car can still be sold.
type CarStatus string

const (
	CarAvailable CarStatus = "available"
	CarSold      CarStatus = "sold"
)

// Car is a single vehicle in the inventory.
type Car struct {
	ID        string    `json:"id"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year"`
	Engine    Engine    `json:"engine"`
	Trim      string    `json:"trim,omitempty"`
	BasePrice int       `json:"basePrice"`
	Status    CarStatus `json:"status"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order records a sale agreement for a car.
type Order struct {
	OrderID      string      `json:"orderId"`
	CarID        string      `json:"carId"`
	CustomerName string      `json:"customerName"`
	AgreedPrice  int         `json:"agreedPrice"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Filter narrows ListCars results. All set fields must match
// (case-insensitive). Sold cars are excluded unless IncludeSold is set.
type Filter struct {
	Make        string
	Model       string
	Year        int
	Engine      string
	Trim        string
	Status      string
	IncludeSold bool
}

// Quotation is a priced offer for a car.
type Quotation struct {
	CarID       string  `json:"carId"`
	BasePrice   int     `json:"basePrice"`
	DiscountPct float64 `json:"discountPct"`
	FinalPrice  int     `json:"finalPrice"`
	Currency    string  `json:"currency"`
}

// Info is the dealership contact card served as the dealer://info resource.
type Info struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Hours        string `json:"hours"`
	SupportEmail string `json:"supportEmail"`
}

// DefaultInfo returns the showroom contact card.
func DefaultInfo() Info {
	return Info{
		Name:         "Endava Auto Retail – Bucharest",
		Address:      "Bd. Unirii 10, Bucharest",
		Phone:        "+40 21 000 0000",
		Hours:        "Mon–Fri 9–18",
		SupportEmail: "sales@endava-auto.example",
	}
}
