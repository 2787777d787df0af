package export

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"garage/internal/database"
	"garage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newExportFixture(t *testing.T) (*Exporter, *database.DB, string) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "garage.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: 10, Name: "Виктор", Role: models.RoleCustomer}))
	require.NoError(t, db.UpsertVehicle(ctx, &models.Vehicle{ID: 1, CustomerID: 10, Make: "Lada", Model: "Vesta", Plate: "A123BC"}))

	req := &models.ServiceRequest{
		CustomerID:  10,
		VehicleID:   1,
		ServiceType: "diagnostics",
		Description: "стук в подвеске",
		Status:      models.StatusPending,
	}
	require.NoError(t, db.CreateRequest(ctx, req))
	require.NoError(t, db.AppendHistory(ctx, &models.StatusHistory{
		RequestID: req.ID,
		Status:    models.StatusApproved,
		ChangedBy: 1,
	}))

	exportDir := t.TempDir()
	return NewExporter(db, exportDir, logger), db, exportDir
}

func TestWriteRequests(t *testing.T) {
	exporter, _, _ := newExportFixture(t)

	var buf bytes.Buffer
	from := time.Now().AddDate(0, 0, -1)
	to := time.Now().AddDate(0, 0, 1)
	require.NoError(t, exporter.WriteRequests(context.Background(), &buf, from, to))
	require.NotZero(t, buf.Len())

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.NotContains(t, f.GetSheetList(), "Sheet1")

	rows, err := f.GetRows("Заявки")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "diagnostics", rows[1][3])
	assert.Equal(t, models.StatusPending, rows[1][5])

	history, err := f.GetRows("История")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusApproved, history[1][1])
}

func TestWriteRequestsEmptyRange(t *testing.T) {
	exporter, _, _ := newExportFixture(t)

	var buf bytes.Buffer
	// Окно в прошлом, заявок там нет
	from := time.Now().AddDate(-2, 0, 0)
	to := time.Now().AddDate(-1, 0, 0)
	require.NoError(t, exporter.WriteRequests(context.Background(), &buf, from, to))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Заявки")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestExportRequestsWritesFile(t *testing.T) {
	exporter, _, exportDir := newExportFixture(t)

	from := time.Now().AddDate(0, 0, -1)
	to := time.Now().AddDate(0, 0, 1)
	path, err := exporter.ExportRequests(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, exportDir, filepath.Dir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
