package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"CoinTrack/internal/domain/models"
	"CoinTrack/internal/handler/ws"
	"CoinTrack/internal/service/fetcher"
	"CoinTrack/internal/usecase"
	"CoinTrack/internal/view"
	xhttp "CoinTrack/pkg/http"
	"CoinTrack/pkg/http/middleware"
	xlogger "CoinTrack/pkg/logger"
)

// operationTimeout bounds loads triggered over HTTP. They are detached from
// the request so a client hanging up does not abort a load other viewers see.
const operationTimeout = 2 * time.Minute

// TrackerEchoHandler exposes the tracker over HTTP and websocket.
type TrackerEchoHandler struct {
	logger  *xlogger.Logger
	tracker *usecase.Tracker
	views   *view.Store
	hub     *ws.Hub
	limiter middleware.Allower
}

func NewTrackerEchoHandler(logger *xlogger.Logger, tracker *usecase.Tracker, views *view.Store, hub *ws.Hub, limiter middleware.Allower) *TrackerEchoHandler {
	return &TrackerEchoHandler{logger: logger, tracker: tracker, views: views, hub: hub, limiter: limiter}
}

func (h *TrackerEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/view", h.View)
	g.GET("/search", h.Search)

	writes := g.Group("")
	if h.limiter != nil {
		writes.Use(middleware.RateLimit(h.limiter))
	}
	writes.POST("/more", h.More)
	writes.PUT("/source", h.Source)
	writes.POST("/refresh", h.Refresh)

	if h.hub != nil {
		e.GET("/ws", h.hub.Serve)
	}
}

// View returns what is currently displayed plus the tracker state.
func (h *TrackerEchoHandler) View(c echo.Context) error {
	req := &models.ViewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.viewResponse(req))
}

func (h *TrackerEchoHandler) More(c echo.Context) error {
	return h.run(c, "load more", h.tracker.LoadMore)
}

func (h *TrackerEchoHandler) Refresh(c echo.Context) error {
	return h.run(c, "refresh", h.tracker.Refresh)
}

func (h *TrackerEchoHandler) Source(c echo.Context) error {
	req := &models.SourceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	src := models.Source(req.Source)
	return h.run(c, "change source", func(ctx context.Context) error {
		return h.tracker.ChangeSource(ctx, src)
	})
}

// Search feeds a keystroke to the debounced search. Results arrive on the
// websocket and through /api/view.
func (h *TrackerEchoHandler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.tracker.Search(req.Query)
	return xhttp.AcceptedResponse(c, map[string]string{"query": req.Query})
}

func (h *TrackerEchoHandler) run(c echo.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), operationTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		switch {
		case errors.Is(err, usecase.ErrBusy):
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("another load is in progress"))
		case errors.Is(err, usecase.ErrUnknownSource):
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
		case fetcher.IsCanceled(err):
			return xhttp.AppErrorResponse(c, xhttp.ConflictError(op+" was canceled"))
		default:
			h.logger.Error(op+" failed", xlogger.Error(err))
			appErr := xhttp.BadGatewayError(h.views.Current().Message).WithError(err)
			if code := xhttp.StatusCode(err); code != 0 {
				appErr.WithParam("upstream_status", code)
			}
			return xhttp.AppErrorResponse(c, appErr)
		}
	}
	return xhttp.SuccessResponse(c, h.viewResponse(&models.ViewRequest{}))
}

func (h *TrackerEchoHandler) viewResponse(req *models.ViewRequest) models.ViewResponse {
	v := h.views.Current()
	total := len(v.Assets)
	v.Assets = usecase.FilterByName(v.Assets, req.Filter)
	if req.Limit > 0 && len(v.Assets) > req.Limit {
		v.Assets = v.Assets[:req.Limit]
	}

	snap := h.tracker.Snapshot()
	snap.Assets = nil
	return models.ViewResponse{View: v, Snapshot: snap, Total: total}
}

// Ensure the handler satisfies the server's registration contract.
var _ xhttp.Handler = (*TrackerEchoHandler)(nil)
