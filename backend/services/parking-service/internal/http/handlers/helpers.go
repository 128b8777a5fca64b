package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"parkwise/backend/services/parking-service/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrPaymentRequired):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	writeError(w, status, service.KindOf(err), err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid json")
		return false
	}
	return true
}

// intQuery reads a positive integer query parameter, falling back to def.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return v, nil
}

func pageQuery(w http.ResponseWriter, r *http.Request) (service.Page, bool) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return service.Page{}, false
	}
	size, err := intQuery(r, "page_size", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return service.Page{}, false
	}
	return service.Page{Number: page, Size: size}, true
}
