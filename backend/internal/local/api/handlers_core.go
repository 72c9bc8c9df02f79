package api

import (
	"net/http"

	localtypes "growmat/backend/internal/local/api/types"
	apicommon "growmat/backend/internal/shared/api"
	sharedtypes "growmat/backend/internal/shared/types"
	"growmat/backend/pkg/router"
	"growmat/backend/pkg/utils"
)

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, sharedtypes.PingResponse{
		Message: "Pong", Status: sharedtypes.PingStatusOK,
	})

	return nil
}

func (h *Handler) RegisterPing(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "ping",
		Summary:     "Ping the server",
		Description: "Check if the server is alive",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Ping),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	status := h.opts.Core.Health(r.Context())
	resp := localtypes.HealthResponse{
		Database: status.Database,
		MQTT:     status.MQTT,
	}

	code := http.StatusOK
	if !status.Database || !status.MQTT {
		code = http.StatusServiceUnavailable
	}

	apicommon.RespondJSON(w, r, code, resp)

	return nil
}

func (h *Handler) RegisterHealth(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "health",
		Summary:     "Check server health",
		Description: "Reports the state store and MQTT connection. Responds 503 when either is down.",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Health),
	})
}

func (h *Handler) System(w http.ResponseWriter, r *http.Request) error {
	resp := localtypes.SystemResponse{
		Device: h.opts.Core.DeviceStatus(),
		Build:  utils.GetBuildInfo(),
	}

	if h.rb != nil {
		resp.Routes = h.rb.Routes()
	}

	if h.opts.Operations != nil {
		resp.MQTT = h.opts.Operations()
	}

	apicommon.RespondJSON(w, r, http.StatusOK, resp)

	return nil
}

func (h *Handler) RegisterSystem(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getSystem",
		Summary:     "Get device status",
		Description: "Supervisor status, build information and the catalog of HTTP and MQTT operations",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.System),
	})
}
