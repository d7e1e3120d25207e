package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/infrastructure/parser"
)

// RateHandler stores and serves exchange-rate tables
type RateHandler struct {
	BaseHandler
	repo currency.RateRepository
	base valueobject.Currency
	now  func() time.Time
}

// NewRateHandler creates a new RateHandler
func NewRateHandler(repo currency.RateRepository, base valueobject.Currency) *RateHandler {
	if base == "" {
		base = valueobject.EUR
	}
	return &RateHandler{repo: repo, base: base, now: time.Now}
}

// LatestRatesQuery selects a stored table
type LatestRatesQuery struct {
	Base string `form:"base" binding:"omitempty,len=3,alpha" example:"EUR"`
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02" example:"2024-12-31"`
}

// RateTableResponse is an exchange-rate table
type RateTableResponse struct {
	Base  string          `json:"base" example:"EUR"`
	Date  string          `json:"date,omitempty" example:"2024-12-31"`
	Rates []currency.Rate `json:"rates"`
}

func toRateTableResponse(t *currency.RateTable) RateTableResponse {
	resp := RateTableResponse{Base: string(t.Base()), Rates: t.Rates()}
	if !t.AsOf().IsZero() {
		resp.Date = t.AsOf().Format(time.DateOnly)
	}
	return resp
}

// Save godoc
// @ID           saveRateTable
// @Summary      Store an exchange-rate table
// @Description  Stores every quote of the table at its date, replacing quotes already stored for that date
// @Tags         rates
// @Accept       json
// @Produce      json
// @Param        request body parser.RatesInput true "Rate table"
// @Success      201 {object} APIResponse[RateTableResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /rates [post]
func (h *RateHandler) Save(c *gin.Context) {
	var in parser.RatesInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.BindError(c, err)
		return
	}
	if in.Date == "" {
		in.Date = h.now().Format(time.DateOnly)
	}
	table, err := in.Table()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.repo.Save(c.Request.Context(), table); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, APIResponse[RateTableResponse]{Success: true, Data: toRateTableResponse(table)})
}

// Latest godoc
// @ID           getLatestRateTable
// @Summary      Get the newest exchange rates
// @Description  Returns the newest quote of every currency against base, as of date
// @Tags         rates
// @Produce      json
// @Param        base query string false "Base currency" default(EUR)
// @Param        date query string false "Reference date (YYYY-MM-DD), today when omitted"
// @Success      200 {object} APIResponse[RateTableResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /rates/latest [get]
func (h *RateHandler) Latest(c *gin.Context) {
	var q LatestRatesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	base := h.base
	if q.Base != "" {
		base = valueobject.NormalizeCurrency(q.Base)
	}
	asOf := h.now()
	if q.Date != "" {
		asOf, _ = time.Parse(time.DateOnly, q.Date)
	}

	table, err := h.repo.Latest(c.Request.Context(), base, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRateTableResponse(table))
}
