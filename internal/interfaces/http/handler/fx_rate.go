package handler

import (
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FXRateHandler handles daily exchange rates
type FXRateHandler struct {
	BaseHandler
	rates *appfx.RateService
}

// NewFXRateHandler creates a new FXRateHandler
func NewFXRateHandler(rates *appfx.RateService) *FXRateHandler {
	return &FXRateHandler{rates: rates}
}

// Routes returns the fx rate route group
func (h *FXRateHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("fx-rates", "/fx-rates").
		GET("/:date", h.Get).
		PUT("/:date", h.Set)
}

// SetDailyRateRequest carries the rates for one day. One rate is enough;
// the other is derived through the redenomination factor.
// @Description Request body for setting a daily rate
type SetDailyRateRequest struct {
	USDToSYPOld *decimal.Decimal `json:"usd_to_syp_old" swaggertype:"string" example:"13000"`
	USDToSYPNew *decimal.Decimal `json:"usd_to_syp_new" swaggertype:"string" example:"130"`
}

// DailyRateResponse represents the rates applying to a day
// @Description Exchange rates for one calendar day
type DailyRateResponse struct {
	RateDate    string          `json:"rate_date" example:"2024-03-01"`
	USDToSYPOld decimal.Decimal `json:"usd_to_syp_old" swaggertype:"string" example:"13000"`
	USDToSYPNew decimal.Decimal `json:"usd_to_syp_new" swaggertype:"string" example:"130"`
}

func toDailyRateResponse(date time.Time, rateOld, rateNew decimal.Decimal) DailyRateResponse {
	return DailyRateResponse{
		RateDate:    date.Format(dateLayout),
		USDToSYPOld: rateOld,
		USDToSYPNew: rateNew,
	}
}

// Get godoc
// @ID           getDailyRate
// @Summary      Rates for a day
// @Description  Returns the rates applying to the date. Under the lenient policy the latest earlier rate within the lookback window is returned, with its own rate_date.
// @Tags         fx-rates
// @Produce      json
// @Param        date path string true "Day (YYYY-MM-DD)"
// @Success      200 {object} APIResponse[DailyRateResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse "No exchange rate configured"
// @Router       /fx-rates/{date} [get]
func (h *FXRateHandler) Get(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		h.BadRequest(c, "date must be in YYYY-MM-DD format")
		return
	}

	snapshot, err := h.rates.DailyRate(c.Request.Context(), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDailyRateResponse(snapshot.RateDate, snapshot.RateOld, snapshot.RateNew))
}

// Set godoc
// @ID           setDailyRate
// @Summary      Set rates for a day
// @Description  Creates or replaces the rates for the date. Documents already frozen keep their own snapshot.
// @Tags         fx-rates
// @Accept       json
// @Produce      json
// @Param        date path string true "Day (YYYY-MM-DD)"
// @Param        request body SetDailyRateRequest true "Rates"
// @Success      200 {object} APIResponse[DailyRateResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /fx-rates/{date} [put]
func (h *FXRateHandler) Set(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		h.BadRequest(c, "date must be in YYYY-MM-DD format")
		return
	}
	var req SetDailyRateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.USDToSYPOld == nil && req.USDToSYPNew == nil {
		h.BadRequest(c, "usd_to_syp_old or usd_to_syp_new is required")
		return
	}

	var rateOld, rateNew decimal.Decimal
	if req.USDToSYPOld != nil {
		rateOld = *req.USDToSYPOld
	}
	if req.USDToSYPNew != nil {
		rateNew = *req.USDToSYPNew
	}

	rate, err := h.rates.SetDailyRate(c.Request.Context(), date, rateOld, rateNew)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDailyRateResponse(rate.RateDate, rate.USDToSYPOld, rate.USDToSYPNew))
}
