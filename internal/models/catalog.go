package models

import "time"

// Customer is a delivery destination
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Code      *string   `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product is a catalog entry that order lines refer to
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Cod         *string   `db:"cod" json:"cod"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
