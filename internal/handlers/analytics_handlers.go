package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"kape-platform/internal/analytics"
	"kape-platform/internal/models"
	"kape-platform/internal/repository"
	"kape-platform/internal/services"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// AnalyticsProvider computes dashboard analytics
type AnalyticsProvider interface {
	Portfolio(ctx context.Context) (*analytics.PortfolioAnalytics, error)
	Farm(ctx context.Context, farmID string) (*analytics.FarmAnalytics, error)
	FarmForUser(ctx context.Context, userID string) (*analytics.FarmAnalytics, error)
	Attention(ctx context.Context) ([]analytics.EnrichedCluster, error)
}

// FarmAdvisor produces per-cluster advice and harvest estimates
type FarmAdvisor interface {
	ClusterRecommendations(ctx context.Context, clusterID string) (*services.ClusterReport, error)
	EstimateHarvest(ctx context.Context, req services.HarvestEstimateRequest) (*analytics.HarvestEstimate, error)
}

// ReportExporter renders downloadable reports
type ReportExporter interface {
	Export(ctx context.Context, req services.ExportRequest) (*services.ExportFile, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AnalyticsHandler handles the farm analytics API endpoints
type AnalyticsHandler struct {
	analytics AnalyticsProvider
	advisor   FarmAdvisor
	exporter  ReportExporter
	health    HealthChecker
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	analyticsProvider AnalyticsProvider,
	advisor FarmAdvisor,
	exporter ReportExporter,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analyticsProvider,
		advisor:   advisor,
		exporter:  exporter,
		health:    health,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// AttentionResponse lists the clusters needing attention
type AttentionResponse struct {
	Data  []analytics.EnrichedCluster `json:"data"`
	Total int                         `json:"total"`
}

// GetPortfolio handles GET /api/admin/analytics
func (h *AnalyticsHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.Portfolio(r.Context())
	if err != nil {
		h.sendServiceError(w, r, "/api/admin/analytics", err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}

// GetAttention handles GET /api/admin/attention
func (h *AnalyticsHandler) GetAttention(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.analytics.Attention(r.Context())
	if err != nil {
		h.sendServiceError(w, r, "/api/admin/attention", err)
		return
	}
	h.sendJSON(w, AttentionResponse{Data: clusters, Total: len(clusters)}, http.StatusOK)
}

// GetFarmAnalytics handles GET /api/farms/{farmID}/analytics
func (h *AnalyticsHandler) GetFarmAnalytics(w http.ResponseWriter, r *http.Request) {
	farmID := mux.Vars(r)["farmID"]

	result, err := h.analytics.Farm(r.Context(), farmID)
	if err != nil {
		h.sendServiceError(w, r, "/api/farms/{farmID}/analytics", err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}

// GetUserAnalytics handles GET /api/users/{userID}/analytics
func (h *AnalyticsHandler) GetUserAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	r = r.WithContext(logging.WithUserID(r.Context(), userID))

	result, err := h.analytics.FarmForUser(r.Context(), userID)
	if err != nil {
		h.sendServiceError(w, r, "/api/users/{userID}/analytics", err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}

// GetClusterRecommendations handles GET /api/clusters/{clusterID}/recommendations
func (h *AnalyticsHandler) GetClusterRecommendations(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterID"]

	report, err := h.advisor.ClusterRecommendations(r.Context(), clusterID)
	if err != nil {
		h.sendServiceError(w, r, "/api/clusters/{clusterID}/recommendations", err)
		return
	}
	h.sendJSON(w, report, http.StatusOK)
}

// EstimateHarvest handles POST /api/harvest-estimate
func (h *AnalyticsHandler) EstimateHarvest(w http.ResponseWriter, r *http.Request) {
	var req services.HarvestEstimateRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.metrics.RecordAPIError("bad_request", "/api/harvest-estimate")
		h.sendError(w, r, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	estimate, err := h.advisor.EstimateHarvest(r.Context(), req)
	if err != nil {
		h.sendServiceError(w, r, "/api/harvest-estimate", err)
		return
	}
	h.sendJSON(w, estimate, http.StatusOK)
}

// ExportReport handles GET /api/export/{report}
func (h *AnalyticsHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	req := services.ExportRequest{
		Report: mux.Vars(r)["report"],
		Format: r.URL.Query().Get("format"),
		FarmID: r.URL.Query().Get("farm_id"),
	}

	file, err := h.exporter.Export(r.Context(), req)
	if err != nil {
		h.sendServiceError(w, r, "/api/export/{report}", err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(file.Body)
}

// HealthCheck handles GET /health
func (h *AnalyticsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{
		"status": status["status"],
	})
	h.sendJSON(w, status, code)
}

// sendJSON sends a JSON response
func (h *AnalyticsHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *AnalyticsHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      statusCode,
		RequestID: logging.RequestID(r.Context()),
	}
	h.sendJSON(w, response, statusCode)
}

// sendServiceError maps a service error to a status: missing resources are
// 404, rejected input is 400, anything else is logged and reported as 500.
func (h *AnalyticsHandler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var notFound *repository.NotFoundError
	var invalid *models.ValidationError

	switch {
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &invalid):
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, invalid.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"method":   r.Method,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, "internal error", http.StatusInternalServerError)
	}
}

// RegisterRoutes registers all API routes and middleware
func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestID, RequestMetrics(h.metrics, h.logger))

	router.HandleFunc("/api/admin/analytics", h.GetPortfolio).Methods("GET")
	router.HandleFunc("/api/admin/attention", h.GetAttention).Methods("GET")
	router.HandleFunc("/api/farms/{farmID}/analytics", h.GetFarmAnalytics).Methods("GET")
	router.HandleFunc("/api/users/{userID}/analytics", h.GetUserAnalytics).Methods("GET")
	router.HandleFunc("/api/clusters/{clusterID}/recommendations", h.GetClusterRecommendations).Methods("GET")
	router.HandleFunc("/api/harvest-estimate", h.EstimateHarvest).Methods("POST")
	router.HandleFunc("/api/export/{report}", h.ExportReport).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc(openAPIPath, OpenAPISpec).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
