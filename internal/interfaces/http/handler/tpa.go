package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/application/transferpricing"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"github.com/tpa/backend/internal/infrastructure/parser"
	"github.com/tpa/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RateSource returns the newest stored rate table for a base currency
type RateSource interface {
	Latest(ctx context.Context, base valueobject.Currency, asOf time.Time) (*currency.RateTable, error)
}

// RunArchive keeps computation results for later download
type RunArchive interface {
	Store(ctx context.Context, runID string, body []byte) error
	DownloadURL(ctx context.Context, runID string) (string, time.Time, error)
}

// TPAHandler serves the parsing, affectation and computation endpoints
type TPAHandler struct {
	BaseHandler
	service *transferpricing.ComputationService
	rates   RateSource
	archive RunArchive
	base    valueobject.Currency
	now     func() time.Time
}

// NewTPAHandler creates a new TPAHandler. rates may be nil, in which case
// computations without explicit exchange rates use no conversion.
func NewTPAHandler(service *transferpricing.ComputationService, rates RateSource, base valueobject.Currency) *TPAHandler {
	if base == "" {
		base = valueobject.EUR
	}
	return &TPAHandler{
		service: service,
		rates:   rates,
		base:    base,
		now:     time.Now,
	}
}

// WithArchive stores every successful computation in a, so that GET
// /tpa/runs/:id can hand out a download link.
func (h *TPAHandler) WithArchive(a RunArchive) *TPAHandler {
	h.archive = a
	return h
}

// ParseData godoc
// @ID           parseTPAData
// @Summary      Parse financial records
// @Description  Accepts a JSON array or a CSV file and returns the typed records
// @Tags         tpa
// @Accept       json,text/csv
// @Produce      json
// @Param        delimiter query string false "CSV field delimiter" default(,)
// @Success      200 {object} APIResponse[[]RecordResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Router       /tpa/parse-data [post]
func (h *TPAHandler) ParseData(c *gin.Context) {
	raw, ok := h.readEntries(c)
	if !ok {
		return
	}
	records, err := parser.ParseRecords(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRecordResponses(records))
}

// ParseRules godoc
// @ID           parseTPARules
// @Summary      Parse pricing rules
// @Description  Accepts a JSON array or a CSV file and returns the typed rules
// @Tags         tpa
// @Accept       json,text/csv
// @Produce      json
// @Param        delimiter query string false "CSV field delimiter" default(,)
// @Success      200 {object} APIResponse[[]RuleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Router       /tpa/parse-rules [post]
func (h *TPAHandler) ParseRules(c *gin.Context) {
	raw, ok := h.readEntries(c)
	if !ok {
		return
	}
	rules, err := parser.ParseRules(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRuleResponses(rules))
}

// Affectation godoc
// @ID           affectTPARules
// @Summary      List matching rules
// @Description  Returns every record with all the rules matching it, most specific first
// @Tags         tpa
// @Accept       json
// @Produce      json
// @Param        request body AffectationRequest true "Records and rules"
// @Success      200 {object} APIResponse[[]AffectationResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /tpa/affectation [post]
func (h *TPAHandler) Affectation(c *gin.Context) {
	var req AffectationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	records, rules, err := decodeInput(req.Data, req.Rules)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAffectationResponses(h.service.Affect(c.Request.Context(), records, rules)))
}

// Computation godoc
// @ID           computeTPA
// @Summary      Run a computation
// @Description  Resolves one rule per record, solves the adjustments to convergence and aggregates the fiscal impact per taxpayer
// @Tags         tpa
// @Accept       json
// @Produce      json
// @Param        request body ComputationRequest true "Records, rules and optional exchange rates"
// @Success      200 {object} APIResponse[ComputationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      504 {object} ErrorResponse
// @Router       /tpa/computation [post]
func (h *TPAHandler) Computation(c *gin.Context) {
	var req ComputationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	records, rules, err := decodeInput(req.Data, req.Rules)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()
	table, err := h.rateTable(ctx, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	pairings := h.service.ResolveRules(ctx, records, rules)
	outputs, report, err := h.service.Compute(ctx, pairings, table)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := ComputationResponse{
		RunID:         report.RunID.String(),
		DataWithRules: toPairingResponses(pairings),
		DataOutput:    make([]OutputResponse, len(outputs)),
		Report: ReportResponse{
			Pairings:  report.Pairings,
			Ruled:     report.Ruled,
			Passes:    report.Passes,
			FinalSum:  report.FinalSum,
			Forced:    report.Forced,
			Taxpayers: make([]TaxPayerResponse, len(report.Taxpayers)),
		},
	}
	for i, o := range outputs {
		resp.DataOutput[i] = toOutputResponse(o)
	}
	for i, t := range report.Taxpayers {
		resp.Report.Taxpayers[i] = toTaxPayerResponse(t)
	}
	resp.Archived = h.store(ctx, resp)
	h.Success(c, resp)
}

// store archives a computation result. A failed upload does not fail the
// computation.
func (h *TPAHandler) store(ctx context.Context, resp ComputationResponse) bool {
	if h.archive == nil {
		return false
	}
	log := logger.FromContext(ctx)
	body, err := json.Marshal(resp)
	if err == nil {
		err = h.archive.Store(ctx, resp.RunID, body)
	}
	if err != nil {
		log.Warn("Failed to archive computation", zap.String("run_id", resp.RunID), zap.Error(err))
		return false
	}
	return true
}

// Run godoc
// @ID           getTPARun
// @Summary      Get an archived computation
// @Description  Returns a time-limited download link to the stored result of a computation run
// @Tags         tpa
// @Produce      json
// @Param        id path string true "Run ID" format(uuid)
// @Success      200 {object} APIResponse[RunLinkResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /tpa/runs/{id} [get]
func (h *TPAHandler) Run(c *gin.Context) {
	if h.archive == nil {
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Run archive is not configured")
		return
	}
	id := c.Param("id")
	link, expiresAt, err := h.archive.DownloadURL(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RunLinkResponse{RunID: id, URL: link, ExpiresAt: expiresAt})
}

// rateTable picks the rates of a computation: the request's own table,
// else the newest stored table, else none.
func (h *TPAHandler) rateTable(ctx context.Context, req ComputationRequest) (*currency.RateTable, error) {
	if req.ExchangeRates != nil {
		return req.ExchangeRates.Table()
	}
	if h.rates == nil {
		return currency.EmptyRateTable(), nil
	}

	base := h.base
	if req.RateBase != "" {
		base = valueobject.NormalizeCurrency(req.RateBase)
	}
	asOf := h.now()
	if req.RateDate != "" {
		asOf, _ = time.Parse(time.DateOnly, req.RateDate)
	}

	table, err := h.rates.Latest(ctx, base, asOf)
	if errors.Is(err, shared.ErrNotFound) {
		logger.FromContext(ctx).Warn("No stored exchange rates, computing without conversion",
			zap.String("base", string(base)),
			zap.String("as_of", asOf.Format(time.DateOnly)),
		)
		return currency.EmptyRateTable(), nil
	}
	return table, err
}

// readEntries reads a raw JSON or CSV body. It answers the request itself
// when the body cannot be read.
func (h *TPAHandler) readEntries(c *gin.Context) ([]map[string]any, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body too large")
			return nil, false
		}
		h.BadRequest(c, "Failed to read request body")
		return nil, false
	}

	var raw []map[string]any
	if strings.Contains(c.ContentType(), "csv") {
		var opts []parser.CSVOption
		if d := c.Query("delimiter"); d != "" {
			r, size := utf8.DecodeRuneInString(d)
			if size != len(d) {
				h.BadRequest(c, "delimiter must be a single character")
				return nil, false
			}
			opts = append(opts, parser.WithDelimiter(r))
		}
		raw, err = parser.ReadCSV(bytes.NewReader(body), opts...)
	} else {
		raw, err = parser.DecodeJSON(bytes.NewReader(body))
	}
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return raw, true
}

func decodeInput(data, rules []byte) ([]tp.Record, []tp.Rule, error) {
	rawData, err := parser.DecodeJSON(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	records, err := parser.ParseRecords(rawData)
	if err != nil {
		return nil, nil, err
	}
	rawRules, err := parser.DecodeJSON(bytes.NewReader(rules))
	if err != nil {
		return nil, nil, err
	}
	parsed, err := parser.ParseRules(rawRules)
	if err != nil {
		return nil, nil, err
	}
	return records, parsed, nil
}
