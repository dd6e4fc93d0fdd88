package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plaetorius/streambet/internal/config"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/repository"
	"github.com/plaetorius/streambet/internal/service"
)

// MarketAdminHandler serves /admin/markets endpoints: the full market
// lifecycle from creation through resolution.
type MarketAdminHandler struct {
	marketSvc *service.MarketService
	betRepo   *repository.BetRepository
	cfg       *config.Config
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(
	marketSvc *service.MarketService,
	betRepo *repository.BetRepository,
	cfg *config.Config,
) *MarketAdminHandler {
	return &MarketAdminHandler{marketSvc: marketSvc, betRepo: betRepo, cfg: cfg}
}

// List godoc
// GET /admin/markets?status=open&page=1&limit=20
func (h *MarketAdminHandler) List(c *gin.Context) {
	status := c.Query("status")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.List(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, markets, total, page, limit)
}

// Detail godoc
// GET /admin/markets/:id
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	market, err := h.marketSvc.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	bets, _ := h.betRepo.GetByMarket(ctx, id)

	respondSuccess(c, http.StatusOK, gin.H{
		"market": market,
		"bets":   bets,
	})
}

// Create godoc
// POST /admin/markets
// Body: {"platform":"twitch","stream":"somechannel","question":"...",
//
//	"answerA":"Yes","answerB":"No","duration":120}
func (h *MarketAdminHandler) Create(c *gin.Context) {
	var body service.CreateMarketRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if body.Platform == "" || body.Stream == "" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "platform and stream are required")
		return
	}

	market, err := h.marketSvc.Create(c.Request.Context(), body)
	if err != nil {
		if domain.IsValidation(err) {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// Stop godoc
// POST /admin/markets/:id/stop
// Closes betting early; the market stays pending until it is resolved.
func (h *MarketAdminHandler) Stop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	market, err := h.marketSvc.Stop(c.Request.Context(), id)
	if err != nil {
		h.respondTransitionError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Void godoc
// POST /admin/markets/:id/void
// Annuls a market from any pre-resolution state.
func (h *MarketAdminHandler) Void(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	market, err := h.marketSvc.Void(c.Request.Context(), id)
	if err != nil {
		h.respondTransitionError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Resolve godoc
// POST /admin/markets/:id/resolve
// Body: {"isAnswerA": true}
//
// Persists the winning side, submits resolvePool on the contract, and
// broadcasts the result. A chain failure leaves the market resolved in the
// store and returns 502 so the operator can retry the chain step.
func (h *MarketAdminHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		IsAnswerA *bool `json:"isAnswerA" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	market, err := h.marketSvc.Resolve(c.Request.Context(), id, *body.IsAnswerA)
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
		case errors.Is(err, domain.ErrBadTransition):
			respondError(c, http.StatusConflict, "ERR_BAD_TRANSITION", err.Error())
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
		default:
			respondError(c, http.StatusBadGateway, "ERR_CHAIN", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

func (h *MarketAdminHandler) respondTransitionError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
	case errors.Is(err, domain.ErrBadTransition):
		respondError(c, http.StatusConflict, "ERR_BAD_TRANSITION", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
	}
}
