package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/logging"
	"github.com/ekaya-inc/ekaya-estimator/pkg/middleware"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/services"
)

// maxLoggedNames bounds how many input names go into one log entry.
const maxLoggedNames = 10

// EstimateRequest is the body of POST /v1/estimate.
type EstimateRequest struct {
	Names        []string `json:"names" validate:"max=5000,dive,max=500"`
	FormatReport *bool    `json:"format_report,omitempty"` // Defaults to true
	ProjectCode  string   `json:"project_code,omitempty" validate:"max=128"`
	CabinetCode  string   `json:"cabinet_code,omitempty" validate:"max=128"`
}

// Filters returns the catalog filters carried by the request.
func (r *EstimateRequest) Filters() models.CatalogFilters {
	return models.CatalogFilters{ProjectCode: r.ProjectCode, CabinetCode: r.CabinetCode}
}

// EstimateHandler serves the estimate and cache endpoints.
type EstimateHandler struct {
	estimates services.EstimateService
	reports   services.ReportService
	logger    *zap.Logger
}

// NewEstimateHandler creates a new EstimateHandler.
func NewEstimateHandler(estimates services.EstimateService, reports services.ReportService, logger *zap.Logger) *EstimateHandler {
	return &EstimateHandler{
		estimates: estimates,
		reports:   reports,
		logger:    logger.Named("estimate-handler"),
	}
}

// RegisterRoutes registers the estimate handler's routes on the given mux.
func (h *EstimateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/estimate", h.Estimate)
	mux.HandleFunc("POST /v1/cache/invalidate", h.InvalidateCache)
}

// Estimate handles POST /v1/estimate.
// Report generation problems are returned as warnings next to the estimate.
func (h *EstimateHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Debug("Estimate request",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.Int("names", len(req.Names)),
		zap.Strings("sample", logging.TruncateNames(req.Names, maxLoggedNames)))

	outcome, err := h.estimates.Estimate(r.Context(), req.Names, req.Filters())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	formatReport := req.FormatReport == nil || *req.FormatReport
	resp := services.WithReport(r.Context(), h.reports, outcome, formatReport)

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode estimate response", zap.Error(err))
	}
}

// InvalidateCache handles POST /v1/cache/invalidate.
// Called by the catalog importer after it writes new rows.
func (h *EstimateHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.estimates.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}
