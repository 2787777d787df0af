package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"garage/internal/models"
	"garage/internal/service"
)

const maxPhotoUploadBytes = 10 << 20

type actorBody struct {
	ActorID   int64  `json:"actor_id"`
	ActorRole string `json:"actor_role"`
}

func (b actorBody) actor() service.Actor {
	return service.Actor{ID: b.ActorID, Role: strings.TrimSpace(b.ActorRole)}
}

func (b actorBody) validate() error {
	if b.ActorID == 0 {
		return fmt.Errorf("actor_id is required")
	}
	if strings.TrimSpace(b.ActorRole) == "" {
		return fmt.Errorf("actor_role is required")
	}
	return nil
}

func (s *HTTPServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRequest(w, r)
	case http.MethodGet:
		s.handleListRequests(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID    int64  `json:"customer_id"`
		VehicleID     int64  `json:"vehicle_id"`
		ServiceType   string `json:"service_type"`
		Description   string `json:"description"`
		PreferredDate string `json:"preferred_date"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if !s.checkActorWriteLimit(r.Context(), body.CustomerID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var preferred time.Time
	if body.PreferredDate != "" {
		var err error
		preferred, err = time.Parse("2006-01-02", body.PreferredDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid preferred_date; expected YYYY-MM-DD")
			return
		}
	}

	req, err := s.requests.CreateRequest(r.Context(), service.CreateRequestInput{
		CustomerID:    body.CustomerID,
		VehicleID:     body.VehicleID,
		ServiceType:   body.ServiceType,
		Description:   body.Description,
		PreferredDate: preferred,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (s *HTTPServer) handleListRequests(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requests, err := s.requests.ListRequests(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (s *HTTPServer) handleGetRequest(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := s.requests.GetRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Структурированные заметки отдаём рядом с сырой колонкой
	resp := map[string]any{"request": req}
	if req.MechanicNotes != nil {
		resp["mechanic_notes"] = models.ParseMechanicNotes(*req.MechanicNotes)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		actorBody
		Target             string                    `json:"target"`
		AssignedMechanicID *int64                    `json:"assigned_mechanic_id"`
		AdminNotes         *string                   `json:"admin_notes"`
		MechanicNotes      []models.MechanicNoteItem `json:"mechanic_notes"`
		EstimatedCost      *float64                  `json:"estimated_cost"`
		DownPayment        *float64                  `json:"down_payment"`
		TotalCost          *float64                  `json:"total_cost"`
		PaymentMethod      *string                   `json:"payment_method"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Target) == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if !s.checkActorWriteLimit(r.Context(), body.ActorID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	req, err := s.requests.Transition(r.Context(), id, body.actor(), body.Target, service.TransitionPayload{
		AssignedMechanicID: body.AssignedMechanicID,
		AdminNotes:         body.AdminNotes,
		MechanicNotes:      body.MechanicNotes,
		EstimatedCost:      body.EstimatedCost,
		DownPayment:        body.DownPayment,
		TotalCost:          body.TotalCost,
		PaymentMethod:      body.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (s *HTTPServer) handleAssign(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		actorBody
		MechanicID int64 `json:"mechanic_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.MechanicID == 0 {
		writeError(w, http.StatusBadRequest, "mechanic_id is required")
		return
	}
	if !s.checkActorWriteLimit(r.Context(), body.ActorID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	req, err := s.requests.AssignMechanic(r.Context(), id, body.actor(), body.MechanicID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (s *HTTPServer) handlePayment(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		actorBody
		TotalCost     *float64 `json:"total_cost"`
		PaymentMethod string   `json:"payment_method"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.TotalCost == nil {
		writeError(w, http.StatusBadRequest, "total_cost is required")
		return
	}
	if !s.checkActorWriteLimit(r.Context(), body.ActorID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	req, err := s.requests.RecordPayment(r.Context(), id, body.actor(), *body.TotalCost, body.PaymentMethod)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var entries any
	var err error
	if r.URL.Query().Get("order") == "chronological" {
		entries, err = s.requests.ListHistoryChronological(r.Context(), id)
	} else {
		entries, err = s.requests.ListHistory(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *HTTPServer) handleProgress(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.progress.ListProgress(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"progress": entries})

	case http.MethodPost:
		var body struct {
			actorBody
			Date        string `json:"date"`
			Description string `json:"description"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if err := body.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !s.checkActorWriteLimit(r.Context(), body.ActorID) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		var date time.Time
		if body.Date != "" {
			var err error
			date, err = time.Parse("2006-01-02", body.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
				return
			}
		}

		entry, err := s.progress.AddProgress(r.Context(), id, body.ActorID, date, body.Description)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handlePhotos(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		photos, err := s.progress.ListPhotos(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"photos": photos})

	case http.MethodPost:
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			s.handlePhotoUpload(w, r, id)
			return
		}
		s.handlePhotoAttach(w, r, id)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePhotoUpload принимает multipart форму с файлом в поле photo.
func (s *HTTPServer) handlePhotoUpload(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	actorID, err := strconv.ParseInt(r.FormValue("actor_id"), 10, 64)
	if err != nil || actorID == 0 {
		writeError(w, http.StatusBadRequest, "actor_id is required")
		return
	}
	if !s.checkActorWriteLimit(r.Context(), actorID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var progressID *int64
	if raw := r.FormValue("progress_id"); raw != "" {
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid progress_id")
			return
		}
		progressID = &pid
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	photo, err := s.progress.UploadPhoto(r.Context(), id, progressID, actorID, data, r.FormValue("description"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, photo)
}

// handlePhotoAttach привязывает уже загруженный файл по его ссылке.
func (s *HTTPServer) handlePhotoAttach(w http.ResponseWriter, r *http.Request, id int64) {
	var body struct {
		actorBody
		ProgressID  *int64 `json:"progress_id"`
		PhotoRef    string `json:"photo_ref"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.checkActorWriteLimit(r.Context(), body.ActorID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	photo, err := s.progress.AttachPhoto(r.Context(), id, body.ProgressID, body.ActorID, body.PhotoRef, body.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, photo)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fileName := fmt.Sprintf("requests_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := s.exporter.WriteRequests(r.Context(), w, from, to); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

// parseDateRange reads optional from/to query params. Defaults cover the
// last year up to tomorrow.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(-1, 0, 0)
	to := now.AddDate(0, 0, 1)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, fmt.Errorf("invalid from date; expected YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, fmt.Errorf("invalid to date; expected YYYY-MM-DD")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("to is before from")
	}
	return from, to, nil
}
