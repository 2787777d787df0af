package models

import "time"

// User is an actor known to the workshop: customer, admin or mechanic.
type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Phone     string    `json:"phone" yaml:"phone"`
	Role      string    `json:"role" yaml:"role"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Vehicle belongs to exactly one customer and is immutable on a request
// after creation.
type Vehicle struct {
	ID         int64     `json:"id" yaml:"id"`
	CustomerID int64     `json:"customer_id" yaml:"customer_id"`
	Make       string    `json:"make" yaml:"make"`
	Model      string    `json:"model" yaml:"model"`
	Plate      string    `json:"plate" yaml:"plate"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
}
