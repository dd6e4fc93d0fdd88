package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plaetorius/streambet/internal/api/middleware"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/repository"
	"github.com/plaetorius/streambet/internal/service"
)

// BetHandler serves bet placement and position endpoints.
type BetHandler struct {
	settleSvc *service.SettlementService
	betRepo   *repository.BetRepository
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(settleSvc *service.SettlementService, betRepo *repository.BetRepository) *BetHandler {
	return &BetHandler{settleSvc: settleSvc, betRepo: betRepo}
}

// PlaceBet godoc
// POST /api/bets [optional session]
// Body: {"marketId":"uuid","isAnswerA":true,"amount":"0.05","chainId":84532}
//
// Anonymous or wrong-chain callers get a 200 whose body names the wallet
// action required (connect / switchChain) instead of a 401, so the client
// can drive the wallet flow and retry.
func (h *BetHandler) PlaceBet(c *gin.Context) {
	profileID := middleware.GetProfileID(c)
	walletAddress := middleware.GetWalletAddress(c)

	var body struct {
		MarketID  string `json:"marketId"  binding:"required"`
		IsAnswerA *bool  `json:"isAnswerA" binding:"required"`
		Amount    string `json:"amount"    binding:"required"`
		ChainID   int64  `json:"chainId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid marketId format")
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	req := service.PlaceBetRequest{
		Identity: domain.Identity{
			ProfileID:     profileID,
			WalletAddress: walletAddress,
			ChainID:       body.ChainID,
			IsConnected:   profileID != uuid.Nil,
		},
		MarketID:  marketID,
		IsAnswerA: *body.IsAnswerA,
		Amount:    amount,
	}

	result, err := h.settleSvc.PlaceBet(c.Request.Context(), req)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_CONFLICT", "a confirmed bet already exists on this market")
		case errors.Is(err, domain.ErrMarketClosed):
			respondError(c, http.StatusConflict, "ERR_MARKET_CLOSED", "market is not open for bets")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bet")
		}
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// GetConfirmed godoc
// GET /api/bets/confirmed [session]
// Returns the caller's confirmed bets keyed by market id, so a client can
// restore its positions after a reload.
func (h *BetHandler) GetConfirmed(c *gin.Context) {
	profileID := middleware.GetProfileID(c)

	bets, err := h.settleSvc.ConfirmedBets(c.Request.Context(), profileID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bets")
		return
	}
	respondSuccess(c, http.StatusOK, bets)
}

// GetMyBets godoc
// GET /api/bets/my?page=1&limit=20 [session]
func (h *BetHandler) GetMyBets(c *gin.Context) {
	profileID := middleware.GetProfileID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	bets, err := h.betRepo.GetByProfile(c.Request.Context(), profileID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bets")
		return
	}
	respondList(c, bets, len(bets), page, limit)
}

// GetBetByID godoc
// GET /api/bets/:id [session]
func (h *BetHandler) GetBetByID(c *gin.Context) {
	profileID := middleware.GetProfileID(c)

	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BET_ID", "invalid bet id")
		return
	}

	bet, err := h.betRepo.GetByID(c.Request.Context(), betID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "bet not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bet")
		return
	}
	if bet.ProfileID != profileID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this bet does not belong to you")
		return
	}
	respondSuccess(c, http.StatusOK, bet)
}
