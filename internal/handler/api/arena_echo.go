package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ModelArena/internal/domain/models"
	"ModelArena/internal/service/ratelimit"
	"ModelArena/internal/services/inference"
	"ModelArena/internal/usecase"
	xhttp "ModelArena/pkg/http"
	applogger "ModelArena/pkg/logger"
	"ModelArena/pkg/util"
)

const (
	maxTradesLimit = 200
	healthTimeout  = 2 * time.Second
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ArenaEchoHandler exposes the arena over REST.
type ArenaEchoHandler struct {
	logger  *applogger.Logger
	arena   *usecase.Arena
	store   HealthChecker
	limiter *ratelimit.Limiter
}

// NewArenaEchoHandler builds the handler. limiter may be nil to disable join
// throttling.
func NewArenaEchoHandler(
	logger *applogger.Logger,
	arena *usecase.Arena,
	store HealthChecker,
	limiter *ratelimit.Limiter,
) *ArenaEchoHandler {
	return &ArenaEchoHandler{logger: logger.With("api"), arena: arena, store: store, limiter: limiter}
}

func (h *ArenaEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)

	a := g.Group("/arena")
	var joinMW []echo.MiddlewareFunc
	if h.limiter != nil {
		joinMW = append(joinMW, h.limiter.Middleware(nil))
	}
	a.POST("/join", h.Join, joinMW...)
	a.DELETE("/leave/:wallet", h.Leave)
	a.GET("/status", h.Status)
	a.GET("/leaderboard", h.Leaderboard)
	a.GET("/trades", h.Trades)
	a.GET("/fighter/:wallet", h.Fighter)
	a.GET("/portfolios", h.Portfolios)
	a.GET("/samples", h.Samples)
}

func (h *ArenaEchoHandler) Join(c echo.Context) error {
	req := &models.JoinRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	model, err := inference.DecodeModel(req.Model)
	if err == nil {
		err = h.arena.Join(req.Wallet, model)
	} else {
		err = fmt.Errorf("%w: %v", usecase.ErrInvalidModel, err)
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, joinError(err))
	}

	d, _ := h.arena.FighterDetail(req.Wallet)
	return xhttp.SuccessResponse(c, models.JoinResponse{Wallet: d.Wallet, Name: d.Name, Color: d.Color})
}

func joinError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrArenaFull):
		return xhttp.NewAppError("ERR_ARENA_FULL", "", err.Error(), http.StatusConflict)
	case errors.Is(err, usecase.ErrInvalidModel):
		return xhttp.NewAppError("ERR_INVALID_MODEL", "model", err.Error(), http.StatusBadRequest)
	case errors.Is(err, usecase.ErrInvalidWallet):
		return xhttp.NewAppError("ERR_INVALID_WALLET", "wallet", err.Error(), http.StatusBadRequest)
	default:
		return xhttp.InternalError("join failed").WithError(err)
	}
}

func (h *ArenaEchoHandler) Leave(c echo.Context) error {
	wallet := c.Param("wallet")
	if err := h.arena.Leave(wallet); err != nil {
		if errors.Is(err, usecase.ErrNotInArena) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("not in arena"))
		}
		h.logger.Error("leave failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"wallet": util.NormalizeWallet(wallet)})
}

func (h *ArenaEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.arena.Status())
}

func (h *ArenaEchoHandler) Leaderboard(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.arena.Leaderboard())
}

func (h *ArenaEchoHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	limit := util.ClampInt(req.Limit, 1, maxTradesLimit)
	return xhttp.SuccessResponse(c, h.arena.RecentTrades(limit))
}

func (h *ArenaEchoHandler) Fighter(c echo.Context) error {
	d, ok := h.arena.FighterDetail(c.Param("wallet"))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("fighter not found"))
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *ArenaEchoHandler) Portfolios(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.arena.PortfolioSeries())
}

func (h *ArenaEchoHandler) Samples(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, inference.SampleModels())
}

func (h *ArenaEchoHandler) Health(c echo.Context) error {
	st := h.arena.Status()
	res := models.HealthResponse{
		Status:    "ok",
		Running:   st.Running,
		TickCount: st.TickCount,
		Fighters:  st.FighterCount,
		Store:     "ok",
		UptimeSec: int64(h.arena.Uptime().Seconds()),
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			h.logger.Warn("store health check failed", applogger.Error(err))
			res.Status = "degraded"
			res.Store = err.Error()
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
		}
	}
	return xhttp.SuccessResponse(c, res)
}
