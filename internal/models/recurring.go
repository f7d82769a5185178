package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// RecurringOrder is a standing order template. It applies on every ISO
// weekday (1=Monday .. 7=Sunday) listed in DaysOfWeek while active.
type RecurringOrder struct {
	ID                 int64         `db:"id" json:"id"`
	CustomerID         int64         `db:"customer_id" json:"customer_id"`
	IsActive           bool          `db:"is_active" json:"is_active"`
	DaysOfWeek         pq.Int64Array `db:"days_of_week" json:"days_of_week"`
	LastMaterializedAt *Date         `db:"last_materialized_at" json:"last_materialized_at"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`

	CustomerName string `db:"customer_name" json:"customer_name,omitempty"`

	Items []*RecurringOrderItem `db:"-" json:"items,omitempty"`
}

// RunsOn reports whether the template is due on the given ISO weekday
func (r *RecurringOrder) RunsOn(weekday int) bool {
	for _, d := range r.DaysOfWeek {
		if int(d) == weekday {
			return true
		}
	}
	return false
}

// NormalizeWeekdays validates ISO weekdays and returns them sorted with
// duplicates collapsed.
func NormalizeWeekdays(days []int) (pq.Int64Array, error) {
	seen := make(map[int]bool, len(days))
	out := make(pq.Int64Array, 0, len(days))

	for _, d := range days {
		if d < 1 || d > 7 {
			return nil, fmt.Errorf("invalid weekday %d", d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, int64(d))
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// RecurringOrderItem is a template line, copied in Position order
type RecurringOrderItem struct {
	ID                  int64           `db:"id" json:"id"`
	RecurringOrderID    int64           `db:"recurring_order_id" json:"recurring_order_id"`
	ProductID           int64           `db:"product_id" json:"product_id"`
	UnitType            UnitType        `db:"unit_type" json:"unit_type"`
	QtyUnits            decimal.Decimal `db:"qty_units" json:"qty_units"`
	DescriptionOverride *string         `db:"description_override" json:"description_override"`
	Position            int             `db:"position" json:"position"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`

	ProductCod         *string `db:"product_cod" json:"product_cod,omitempty"`
	ProductDescription *string `db:"product_description" json:"product_description,omitempty"`
}

// ToOrderItem copies the template line onto an order
func (it *RecurringOrderItem) ToOrderItem(orderID int64) *OrderItem {
	var override *string
	if it.DescriptionOverride != nil {
		v := *it.DescriptionOverride
		override = &v
	}

	return NewOrderItem(orderID, it.ProductID, it.UnitType, it.QtyUnits, override)
}
