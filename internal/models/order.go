package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPrinted   OrderStatus = "printed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPrinted, OrderStatusCancelled:
		return true
	}
	return false
}

// UnitType is the unit a line quantity is expressed in
type UnitType string

const (
	UnitKG UnitType = "KG" // weight
	UnitCS UnitType = "CS" // case
	UnitPZ UnitType = "PZ" // piece
)

func (u UnitType) IsValid() bool {
	switch u {
	case UnitKG, UnitCS, UnitPZ:
		return true
	}
	return false
}

// Order is a concrete customer order for a delivery date
type Order struct {
	ID               int64       `db:"id" json:"id"`
	CustomerID       int64       `db:"customer_id" json:"customer_id"`
	OrderDate        Date        `db:"order_date" json:"order_date"`
	Status           OrderStatus `db:"status" json:"status"`
	IsRecurring      bool        `db:"is_recurring" json:"is_recurring"`
	RecurringOrderID *int64      `db:"recurring_order_id" json:"recurring_order_id"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`

	// joined for listings
	CustomerName string `db:"customer_name" json:"customer_name,omitempty"`

	Items []*OrderItem `db:"-" json:"items,omitempty"`
}

// NewOrder creates a manual, open order
func NewOrder(customerID int64, date Date) *Order {
	return &Order{
		CustomerID: customerID,
		OrderDate:  date,
		Status:     OrderStatusOpen,
		CreatedAt:  GetCurrentTime(),
	}
}

// NewMaterializedOrder creates the open order produced by a recurring template for date
func NewMaterializedOrder(template *RecurringOrder, date Date) *Order {
	templateID := template.ID

	return &Order{
		CustomerID:       template.CustomerID,
		OrderDate:        date,
		Status:           OrderStatusOpen,
		IsRecurring:      true,
		RecurringOrderID: &templateID,
		CreatedAt:        GetCurrentTime(),
	}
}

// IsLocked reports whether line items can no longer change
func (o *Order) IsLocked() bool {
	return o.Status == OrderStatusPrinted
}

// OrderItem is a line of an order
type OrderItem struct {
	ID                  int64           `db:"id" json:"id"`
	OrderID             int64           `db:"order_id" json:"order_id"`
	ProductID           int64           `db:"product_id" json:"product_id"`
	UnitType            UnitType        `db:"unit_type" json:"unit_type"`
	QtyUnits            decimal.Decimal `db:"qty_units" json:"qty_units"`
	QtyKg               decimal.Decimal `db:"qty_kg" json:"qty_kg"`
	DescriptionOverride *string         `db:"description_override" json:"description_override"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`

	// joined from products
	ProductCod         *string `db:"product_cod" json:"product_cod,omitempty"`
	ProductDescription *string `db:"product_description" json:"product_description,omitempty"`
}

// NewOrderItem creates a line with no weighed quantity yet
func NewOrderItem(orderID, productID int64, unit UnitType, qty decimal.Decimal, override *string) *OrderItem {
	return &OrderItem{
		OrderID:             orderID,
		ProductID:           productID,
		UnitType:            unit,
		QtyUnits:            qty,
		QtyKg:               decimal.Zero,
		DescriptionOverride: override,
		CreatedAt:           GetCurrentTime(),
	}
}

// OrderDeletion reports how many rows a delete removed
type OrderDeletion struct {
	Orders int64 `json:"orders"`
	Items  int64 `json:"items"`
}

// PickListLine is the per-product total of the items to prepare for a date range
type PickListLine struct {
	ProductID   int64           `db:"product_id" json:"product_id"`
	Cod         *string         `db:"cod" json:"cod"`
	Description string          `db:"description" json:"description"`
	TotalKG     decimal.Decimal `db:"total_kg" json:"total_kg"`
	TotalCS     decimal.Decimal `db:"total_cs" json:"total_cs"`
	TotalPZ     decimal.Decimal `db:"total_pz" json:"total_pz"`
	HasOverride bool            `db:"has_override" json:"has_override"`
}
