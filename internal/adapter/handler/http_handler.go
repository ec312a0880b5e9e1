package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
)

const requestIDHeader = "X-Request-ID"

type HTTPHandler struct {
	reservationService *service.ReservationService
	validate           *validator.Validate
	logger             *slog.Logger
}

type CreateReservationHTTPRequest struct {
	RequestID  string `json:"request_id"`
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	BookID     int64  `json:"book_id" validate:"required,gt=0"`
	RentalDays int    `json:"rental_days" validate:"required,gt=0"`
	StartDate  string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

type ReturnBookHTTPRequest struct {
	ReturnDate string `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(reservationService *service.ReservationService, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		reservationService: reservationService,
		validate:           validator.New(),
		logger:             logger,
	}
}

// Routes wires every endpoint on a fresh mux.
func (h *HTTPHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/reservations", h.withRequestID(h.CreateReservation))
	mux.HandleFunc("GET /api/reservations", h.withRequestID(h.ListReservations))
	mux.HandleFunc("GET /api/reservations/overdue", h.withRequestID(h.ListOverdueReservations))
	mux.HandleFunc("GET /api/reservations/{id}", h.withRequestID(h.GetReservation))
	mux.HandleFunc("POST /api/reservations/{id}/return", h.withRequestID(h.ReturnBook))
	return mux
}

func (h *HTTPHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.reservationService.CreateReservation(r.Context(), service.CreateReservationRequest{
		RequestID:  req.RequestID,
		UserID:     req.UserID,
		BookID:     req.BookID,
		RentalDays: req.RentalDays,
		StartDate:  startDate,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newReservationResponse(view))
}

func (h *HTTPHandler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ReturnBookHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	returnDate, err := parseDate("return_date", req.ReturnDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.reservationService.ReturnBook(r.Context(), id, service.ReturnBookRequest{ReturnDate: returnDate})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newReservationResponse(view))
}

func (h *HTTPHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := h.reservationService.GetReservation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newReservationResponse(view))
}

// ListReservations filters by user_id and/or status when given.
func (h *HTTPHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	var status domain.ReservationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := domain.ParseReservationStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	var (
		views []service.ReservationView
		err   error
	)
	switch userParam := r.URL.Query().Get("user_id"); {
	case userParam != "":
		userID, parseErr := strconv.ParseInt(userParam, 10, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "user_id must be an integer")
			return
		}
		views, err = h.reservationService.ListReservationsByUser(r.Context(), userID)
		if err == nil && status != "" {
			views = filterStatus(views, status)
		}
	case status != "":
		views, err = h.reservationService.ListReservationsByStatus(r.Context(), status)
	default:
		views, err = h.reservationService.ListReservations(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newReservationResponses(views))
}

func (h *HTTPHandler) ListOverdueReservations(w http.ResponseWriter, r *http.Request) {
	views, err := h.reservationService.ListOverdueReservations(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newReservationResponses(views))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(requestIDHeader) == "" {
			r.Header.Set(requestIDHeader, uuid.NewString())
		}
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))
		next(w, r)
	}
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get(requestIDHeader),
			"error", err,
		)
		message = "internal error"
	}

	writeError(w, status, message)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "reservation id must be a positive integer")
		return 0, false
	}
	return id, true
}

func filterStatus(views []service.ReservationView, status domain.ReservationStatus) []service.ReservationView {
	out := views[:0]
	for _, v := range views {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorHTTPResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
