package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/service"
)

// MarketHandler serves market query endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
	bookSvc   *service.BookService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService, bookSvc *service.BookService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc, bookSvc: bookSvc}
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	market, err := h.marketSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// GetByStream godoc
// GET /api/markets/stream/:platform/:name
//
// Returns a stream's live markets twice: "markets" from the store and
// "book" from the in-memory pool view with running totals. The book is nil
// until the stream has at least one watcher.
func (h *MarketHandler) GetByStream(c *gin.Context) {
	platform := c.Param("platform")
	name := c.Param("name")

	markets, err := h.marketSvc.ListByStream(c.Request.Context(), platform, name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch markets")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"markets": markets,
		"book":    h.bookSvc.Snapshot(platform, name),
	})
}

// ListMarkets godoc
// GET /api/markets?status=resolved&page=1&limit=20
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	status := c.Query("status")
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.List(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}
	respondList(c, markets, total, page, limit)
}
