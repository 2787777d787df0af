package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"garage/internal/domain"
	"garage/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	requestsSheet = "Заявки"
	historySheet  = "История"
)

// Exporter renders the service request journal and its audit trail into
// an Excel workbook.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger zerolog.Logger) *Exporter {
	return &Exporter{
		repo:   repo,
		path:   path,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// ExportRequests собирает книгу за период и сохраняет её в папку экспорта.
func (e *Exporter) ExportRequests(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f, err := e.buildWorkbook(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("requests_%s_to_%s.xlsx",
		from.Format("2006-01-02"),
		to.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

// WriteRequests собирает книгу за период и пишет её в w (для скачивания по HTTP).
func (e *Exporter) WriteRequests(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := e.buildWorkbook(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %v", err)
	}
	return nil
}

func (e *Exporter) buildWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	requests, err := e.repo.ListRequests(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("error getting requests: %v", err)
	}

	f := excelize.NewFile()

	index, err := f.NewSheet(requestsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	e.writeRequestsSheet(f, requests)

	if _, err := f.NewSheet(historySheet); err == nil {
		e.writeHistorySheet(ctx, f, requests)
	}

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func (e *Exporter) writeRequestsSheet(f *excelize.File, requests []*models.ServiceRequest) {
	headers := []string{
		"ID", "Клиент", "Автомобиль", "Тип работ", "Описание", "Статус",
		"Механик", "Оценка", "Предоплата", "Итог", "Оплата", "Создана", "Обновлена",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(requestsSheet, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(requestsSheet, "A1", lastHeader, headerStyle)

	for i, req := range requests {
		row := i + 2
		values := []interface{}{
			req.ID,
			req.CustomerID,
			req.VehicleID,
			req.ServiceType,
			req.Description,
			req.Status,
			derefInt64(req.AssignedMechanicID),
			derefFloat(req.EstimatedCost),
			derefFloat(req.DownPayment),
			derefFloat(req.TotalCost),
			derefString(req.PaymentMethod),
			req.CreatedAt.Format("02.01.2006 15:04"),
			req.UpdatedAt.Format("02.01.2006 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(requestsSheet, cell, v)
		}
	}

	_ = f.SetColWidth(requestsSheet, "A", "C", 10)
	_ = f.SetColWidth(requestsSheet, "D", "E", 30)
	_ = f.SetColWidth(requestsSheet, "F", "K", 14)
	_ = f.SetColWidth(requestsSheet, "L", "M", 18)
}

func (e *Exporter) writeHistorySheet(ctx context.Context, f *excelize.File, requests []*models.ServiceRequest) {
	headers := []string{"Заявка", "Статус", "Комментарий", "Кто изменил", "Когда"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(historySheet, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(historySheet, "A1", "E1", headerStyle)

	row := 2
	for _, req := range requests {
		entries, err := e.repo.ListHistory(ctx, req.ID)
		if err != nil {
			e.logger.Error().Err(err).Int64("request_id", req.ID).Msg("Error getting history")
			continue
		}
		// ListHistory отдаёт новые записи первыми, в книге удобнее хронология
		for i := len(entries) - 1; i >= 0; i-- {
			h := entries[i]
			_ = f.SetCellValue(historySheet, fmt.Sprintf("A%d", row), h.RequestID)
			_ = f.SetCellValue(historySheet, fmt.Sprintf("B%d", row), h.Status)
			_ = f.SetCellValue(historySheet, fmt.Sprintf("C%d", row), derefString(h.Notes))
			_ = f.SetCellValue(historySheet, fmt.Sprintf("D%d", row), h.ChangedBy)
			_ = f.SetCellValue(historySheet, fmt.Sprintf("E%d", row), h.CreatedAt.Format("02.01.2006 15:04"))
			row++
		}
	}

	_ = f.SetColWidth(historySheet, "A", "B", 14)
	_ = f.SetColWidth(historySheet, "C", "C", 40)
	_ = f.SetColWidth(historySheet, "D", "E", 18)
}

func derefInt64(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
