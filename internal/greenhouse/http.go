// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	requestutil "github.com/taibuivan/ventigrow/internal/platform/request"
	"github.com/taibuivan/ventigrow/internal/platform/respond"
)

// Handler implements the greenhouse dashboard endpoints.
//
// # Security
//
// Every route requires a signed-in operator; the API server mounts it behind
// the session manager's RequireAuthenticated middleware.
type Handler struct {
	greenhouseService *Service
}

// NewHandler constructs a greenhouse [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{greenhouseService: service}
}

// Routes returns a [chi.Router] with the greenhouse endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Telemetry
	router.Get("/readings/current", handler.currentReading)
	router.Get("/readings/history", handler.readingHistory)

	// Ventilation
	router.Get("/fan", handler.getFan)
	router.Put("/fan", handler.setFan)

	// Alert bands
	router.Get("/thresholds", handler.listThresholds)
	router.Put("/thresholds/{metric}", handler.setThresholds)

	return router
}

// # Telemetry

/*
GET /api/v1/greenhouse/readings/current.

Response:
  - 200: Snapshot: Latest reading with a status per metric
  - 404: ErrNoReadings: Nothing polled yet
*/
func (handler *Handler) currentReading(writer http.ResponseWriter, request *http.Request) {
	snapshot, err := handler.greenhouseService.Current(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, snapshot)
}

/*
GET /api/v1/greenhouse/readings/history?hours=24.

Response:
  - 200: []Reading: Oldest first
  - 400: hours outside 1..168
*/
func (handler *Handler) readingHistory(writer http.ResponseWriter, request *http.Request) {
	hours := DefaultHistoryHours
	if raw := request.URL.Query().Get(FieldHours); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(writer, request, apperr.ValidationError("Invalid query parameter",
				apperr.FieldError{Field: FieldHours, Message: "Must be an integer"}))
			return
		}
		hours = parsed
	}

	readings, err := handler.greenhouseService.History(request.Context(), hours)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, readings)
}

// # Ventilation

func (handler *Handler) getFan(writer http.ResponseWriter, request *http.Request) {
	fan, err := handler.greenhouseService.FanSpeed(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, fan)
}

type setFanRequest struct {
	Speed *int `json:"speed"`
}

/*
PUT /api/v1/greenhouse/fan.

Request:
  - body: {"speed": 0..100}
*/
func (handler *Handler) setFan(writer http.ResponseWriter, request *http.Request) {
	var input setFanRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if input.Speed == nil {
		respond.Error(writer, request, apperr.ValidationError("Validation failed",
			apperr.FieldError{Field: FieldSpeed, Message: "This field is required"}))
		return
	}

	fan, err := handler.greenhouseService.SetFanSpeed(request.Context(), *input.Speed)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, fan)
}

// # Alert Bands

func (handler *Handler) listThresholds(writer http.ResponseWriter, request *http.Request) {
	thresholds, err := handler.greenhouseService.Thresholds(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, thresholds)
}

type setThresholdsRequest struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

/*
PUT /api/v1/greenhouse/thresholds/{metric}.

Request:
  - metric: temperature | humidity | co2
  - body: {"min": n, "max": n} with min < max
*/
func (handler *Handler) setThresholds(writer http.ResponseWriter, request *http.Request) {
	metric, err := ParseMetric(requestutil.Param(request, "metric"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input setThresholdsRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var missing []apperr.FieldError
	if input.Min == nil {
		missing = append(missing, apperr.FieldError{Field: FieldMin, Message: "This field is required"})
	}
	if input.Max == nil {
		missing = append(missing, apperr.FieldError{Field: FieldMax, Message: "This field is required"})
	}
	if len(missing) > 0 {
		respond.Error(writer, request, apperr.ValidationError("Validation failed", missing...))
		return
	}

	thresholds, err := handler.greenhouseService.SetThresholds(request.Context(), metric, *input.Min, *input.Max)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, thresholds)
}
