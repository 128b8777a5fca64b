package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	redisstore "parkwise/backend/services/parking-service/internal/redis"
	"parkwise/backend/services/parking-service/internal/service"
)

// ParkingCommands is the lifecycle surface used by the handlers.
type ParkingCommands interface {
	Arrive(ctx context.Context, plate, photoPath string) (*service.ArrivalResult, error)
	EvaluateCharge(ctx context.Context, plate string) (*service.ChargeEvaluation, error)
	Settle(ctx context.Context, plate string) (*service.SettledPayment, error)
	Close(ctx context.Context, plate string) (*service.ClosedVisit, error)
	History(ctx context.Context, plate string) (*service.PaymentHistory, error)
}

// ParkingQueries is the read-only surface used by the handlers.
type ParkingQueries interface {
	FindVehicle(ctx context.Context, plate string) (*service.VehicleView, error)
	LatestEntry(ctx context.Context, plate string) (*redisstore.ActiveVisit, error)
	ListActive(ctx context.Context, page service.Page) (*service.ActivePage, error)
	ListCompleted(ctx context.Context, page service.Page) (*service.CompletedPage, error)
	ListRecords(ctx context.Context, q service.RecordsQuery) (*service.RecordsPage, error)
}

// ParkingHandler serves the /parking endpoints.
type ParkingHandler struct {
	commands ParkingCommands
	queries  ParkingQueries
	logger   *zap.Logger
}

// NewParkingHandler builds handler set.
func NewParkingHandler(commands ParkingCommands, queries ParkingQueries, logger *zap.Logger) *ParkingHandler {
	return &ParkingHandler{commands: commands, queries: queries, logger: logger}
}

type entryRequest struct {
	LicensePlate string `json:"license_plate"`
	ImagePath    string `json:"image_path"`
}

type plateRequest struct {
	LicensePlate string `json:"license_plate"`
}

// HandleEntry handles POST /parking/entry.
func (h *ParkingHandler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.commands.Arrive(r.Context(), req.LicensePlate, req.ImagePath)
	if err != nil {
		writeServiceError(w, h.logger, "arrive", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandlePaymentCheck handles POST /parking/payment/check. It may open a pending payment.
func (h *ParkingHandler) HandlePaymentCheck(w http.ResponseWriter, r *http.Request) {
	var req plateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	eval, err := h.commands.EvaluateCharge(r.Context(), req.LicensePlate)
	if err != nil {
		writeServiceError(w, h.logger, "evaluate charge", err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// HandlePayment handles POST /parking/payment.
func (h *ParkingHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	var req plateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	paid, err := h.commands.Settle(r.Context(), req.LicensePlate)
	if err != nil {
		writeServiceError(w, h.logger, "settle", err)
		return
	}
	writeJSON(w, http.StatusOK, paid)
}

// HandleExit handles POST /parking/exit.
func (h *ParkingHandler) HandleExit(w http.ResponseWriter, r *http.Request) {
	var req plateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	closed, err := h.commands.Close(r.Context(), req.LicensePlate)
	if err != nil {
		writeServiceError(w, h.logger, "close", err)
		return
	}
	writeJSON(w, http.StatusOK, closed)
}

// HandlePaymentHistory handles GET /parking/payment-history/{plate}.
func (h *ParkingHandler) HandlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.commands.History(r.Context(), r.PathValue("plate"))
	if err != nil {
		writeServiceError(w, h.logger, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleFindVehicle handles GET /parking/car/{plate}.
func (h *ParkingHandler) HandleFindVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.queries.FindVehicle(r.Context(), r.PathValue("plate"))
	if err != nil {
		writeServiceError(w, h.logger, "find vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleLatestEntry handles GET /parking/entry/latest/{plate}.
func (h *ParkingHandler) HandleLatestEntry(w http.ResponseWriter, r *http.Request) {
	visit, err := h.queries.LatestEntry(r.Context(), r.PathValue("plate"))
	if err != nil {
		writeServiceError(w, h.logger, "latest entry", err)
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

// HandleEntryRecords handles GET /parking/entry-records.
func (h *ParkingHandler) HandleEntryRecords(w http.ResponseWriter, r *http.Request) {
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}
	out, err := h.queries.ListActive(r.Context(), page)
	if err != nil {
		writeServiceError(w, h.logger, "list active", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleEntryExitRecords handles GET /parking/entry-exit-records.
func (h *ParkingHandler) HandleEntryExitRecords(w http.ResponseWriter, r *http.Request) {
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}
	out, err := h.queries.ListCompleted(r.Context(), page)
	if err != nil {
		writeServiceError(w, h.logger, "list completed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRecords handles GET /parking/records?page=&page_size=&sort_by=&order=.
func (h *ParkingHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	out, err := h.queries.ListRecords(r.Context(), service.RecordsQuery{
		Page:   page,
		SortBy: q.Get("sort_by"),
		Order:  q.Get("order"),
	})
	if err != nil {
		writeServiceError(w, h.logger, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
