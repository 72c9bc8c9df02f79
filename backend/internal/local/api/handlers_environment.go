package api

import (
	"errors"
	"net/http"

	localservices "growmat/backend/internal/local/services"
	apicommon "growmat/backend/internal/shared/api"
	"growmat/backend/pkg/router"
	"growmat/backend/pkg/utils"
)

func (h *Handler) Environment(w http.ResponseWriter, r *http.Request) error {
	if h.opts.Environment == nil {
		return apicommon.NewError(http.StatusNotFound, localservices.ErrNoEnvironmentSensor.Error())
	}

	state, err := h.opts.Environment.State(r.Context())
	switch {
	case errors.Is(err, localservices.ErrNoEnvironmentSensor):
		return apicommon.NewError(http.StatusNotFound, err.Error())
	case err != nil:
		apicommon.GetLogger(r.Context()).Warn("environment read failed", utils.ErrAttr(err))
		return apicommon.NewError(http.StatusServiceUnavailable, "Environment sensors unavailable")
	}

	apicommon.RespondJSON(w, r, http.StatusOK, state)

	return nil
}

func (h *Handler) RegisterEnvironment(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getEnvironment",
		Summary:     "Get grow-house climate",
		Description: "Corrected temperature and humidity, sea level pressure, gas, light and UV with min/max since start",
		Group:       EnvironmentGroup,
		Handler:     apicommon.ErrorHandler(h.Environment),
	})
}
