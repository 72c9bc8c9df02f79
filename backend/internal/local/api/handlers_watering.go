package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	localtypes "growmat/backend/internal/local/api/types"
	localservices "growmat/backend/internal/local/services"
	apicommon "growmat/backend/internal/shared/api"
	sharedtypes "growmat/backend/internal/shared/types"
	"growmat/backend/internal/store"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/router"
)

// wateringError maps service errors to HTTP errors. Unknown errors stay internal.
func wateringError(err error) error {
	switch {
	case watering.IsGuardError(err):
		return apicommon.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, watering.ErrInvalidSetting), errors.Is(err, watering.ErrUnknownSetting):
		return apicommon.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, localservices.ErrShuttingDown):
		return apicommon.NewError(http.StatusServiceUnavailable, err.Error())
	}

	return err
}

func (h *Handler) WateringState(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK,
		sharedtypes.NewWateringState(h.opts.DeviceID, h.opts.Watering.Snapshot(), time.Now()))

	return nil
}

func (h *Handler) RegisterWateringState(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getWateringState",
		Summary:     "Get watering state",
		Description: "Moisture, tank, cycle and timer state of the watering controller",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.WateringState),
	})
}

func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) error {
	if err := h.opts.Watering.TriggerAsync(r.Context()); err != nil {
		return wateringError(err)
	}

	apicommon.RespondJSON(w, r, http.StatusAccepted, localtypes.TriggerResponse{Message: "Watering started"})

	return nil
}

func (h *Handler) RegisterTrigger(path string, rb *router.RouteBuilder) {
	rb.MustPost(path, router.RouteSpec{
		OperationID: "triggerWatering",
		Summary:     "Start a manual watering session",
		Description: "Responds 202 once the session started and 409 while watering, blocked, paused or the tank is empty",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.Trigger),
	})
}

func (h *Handler) ToggleAuto(w http.ResponseWriter, r *http.Request) error {
	enabled, err := h.opts.Watering.ToggleAuto(r.Context())
	if err != nil {
		return wateringError(err)
	}

	apicommon.RespondJSON(w, r, http.StatusOK, localtypes.AutoWateringResponse{AutoWatering: enabled})

	return nil
}

func (h *Handler) RegisterToggleAuto(path string, rb *router.RouteBuilder) {
	rb.MustPost(path, router.RouteSpec{
		OperationID: "toggleAutoWatering",
		Summary:     "Toggle automatic watering",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.ToggleAuto),
	})
}

func (h *Handler) ResetTank(w http.ResponseWriter, r *http.Request) error {
	if err := h.opts.Watering.ResetTank(r.Context()); err != nil {
		return wateringError(err)
	}

	return h.WateringState(w, r)
}

func (h *Handler) RegisterResetTank(path string, rb *router.RouteBuilder) {
	rb.MustPost(path, router.RouteSpec{
		OperationID: "resetTank",
		Summary:     "Mark the water tank as refilled",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.ResetTank),
	})
}

func (h *Handler) SetTank(w http.ResponseWriter, r *http.Request) error {
	req, err := apicommon.DecodeJSON[localtypes.SetTankRequest](r)
	if err != nil {
		return err
	}

	if req.RemainingML == nil {
		return apicommon.NewValidationError(map[string]string{"remainingML": "required"})
	}

	if err := h.opts.Watering.SetTankRemaining(r.Context(), *req.RemainingML); err != nil {
		return wateringError(err)
	}

	return h.WateringState(w, r)
}

func (h *Handler) RegisterSetTank(path string, rb *router.RouteBuilder) {
	rb.MustPut(path, router.RouteSpec{
		OperationID: "setTankRemaining",
		Summary:     "Set the remaining water in the tank",
		Description: "The value is clamped to the tank capacity",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.SetTank),
	})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, localtypes.NewSettingsResponse(h.opts.Watering.Settings()))

	return nil
}

func (h *Handler) RegisterGetSettings(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getWateringSettings",
		Summary:     "Get watering settings",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.GetSettings),
	})
}

func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) error {
	req, err := apicommon.DecodeJSON[localtypes.UpdateSettingRequest](r)
	if err != nil {
		return err
	}

	if req.Key == "" {
		return apicommon.NewValidationError(map[string]string{"key": "required"})
	}

	settings, err := h.opts.Watering.UpdateSetting(r.Context(), req.Key, req.Value)
	if err != nil {
		return wateringError(err)
	}

	apicommon.RespondJSON(w, r, http.StatusOK, localtypes.NewSettingsResponse(settings))

	return nil
}

func (h *Handler) RegisterUpdateSetting(path string, rb *router.RouteBuilder) {
	rb.MustPut(path, router.RouteSpec{
		OperationID: "updateWateringSetting",
		Summary:     "Update one watering setting",
		Description: "Applies from the next evaluation cycle and survives restarts",
		Group:       WateringGroup,
		Handler:     apicommon.ErrorHandler(h.UpdateSetting),
	})
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) error {
	limit := store.DefaultSessionLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apicommon.NewValidationError(map[string]string{"limit": "must be a positive integer"})
		}

		limit = n
	}

	records, err := h.opts.Watering.Sessions(r.Context(), limit)
	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, localtypes.NewSessionsResponse(records))

	return nil
}

func (h *Handler) RegisterSessions(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "listWateringSessions",
		Summary:     "List recent watering sessions",
		Group:       WateringGroup,
		Parameters: map[string]router.ParameterSpec{
			"limit": {In: router.ParameterInQuery, Description: "Maximum number of sessions (default 50, max 500)"},
		},
		Handler: apicommon.ErrorHandler(h.Sessions),
	})
}
