package database

import (
	"context"
	"fmt"
	"time"

	"garage/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (name, phone, role, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, user.Name, user.Phone, user.Role, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

// UpsertUser inserts or refreshes a roster entry keeping its id stable.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, name, phone, role, created_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  phone = excluded.phone,
                  role = excluded.role`
	_, err := db.ExecContext(ctx, query, user.ID, user.Name, user.Phone, user.Role, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", mapError(err))
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, phone, role, created_at FROM users WHERE id = ?`
	user := &models.User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Phone, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", mapError(err))
	}
	return user, nil
}

func (db *DB) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `INSERT INTO vehicles (customer_id, make, model, plate, created_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		vehicle.CustomerID, vehicle.Make, vehicle.Model, vehicle.Plate, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", mapError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	vehicle.ID = id
	vehicle.CreatedAt = now
	return nil
}

// UpsertVehicle mirrors UpsertUser for seeded vehicles.
func (db *DB) UpsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `INSERT INTO vehicles (id, customer_id, make, model, plate, created_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  customer_id = excluded.customer_id,
                  make = excluded.make,
                  model = excluded.model,
                  plate = excluded.plate`
	_, err := db.ExecContext(ctx, query,
		vehicle.ID, vehicle.CustomerID, vehicle.Make, vehicle.Model, vehicle.Plate, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", mapError(err))
	}
	return nil
}

func (db *DB) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	query := `SELECT id, customer_id, make, model, plate, created_at FROM vehicles WHERE id = ?`
	vehicle := &models.Vehicle{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&vehicle.ID, &vehicle.CustomerID, &vehicle.Make, &vehicle.Model, &vehicle.Plate, &vehicle.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", mapError(err))
	}
	return vehicle, nil
}
