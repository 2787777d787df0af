package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"garage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "garage.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedRequest creates a customer, vehicle and a pending request.
func seedRequest(t *testing.T, db *DB) *models.ServiceRequest {
	t.Helper()
	ctx := context.Background()

	customer := &models.User{Name: "Customer", Phone: "+7000", Role: models.RoleCustomer}
	require.NoError(t, db.CreateUser(ctx, customer))

	vehicle := &models.Vehicle{CustomerID: customer.ID, Make: "Lada", Model: "Vesta", Plate: "B777OP"}
	require.NoError(t, db.CreateVehicle(ctx, vehicle))

	req := &models.ServiceRequest{
		CustomerID:  customer.ID,
		VehicleID:   vehicle.ID,
		ServiceType: "diagnostics",
		Description: "engine light on",
		Status:      models.StatusPending,
	}
	require.NoError(t, db.CreateRequest(ctx, req))
	return req
}

func seedMechanic(t *testing.T, db *DB) *models.User {
	t.Helper()
	mechanic := &models.User{Name: "Mechanic", Phone: "+7001", Role: models.RoleMechanic}
	require.NoError(t, db.CreateUser(context.Background(), mechanic))
	return mechanic
}
