package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/middleware"
	"github.com/hidangan/delivery-api/internal/service"
	"go.uber.org/zap"
)

// ReportServicer defines the service methods needed by report handlers.
// Satisfied by *service.OrderService.
type ReportServicer interface {
	Report(ctx context.Context, actor access.Actor, restaurantID uuid.UUID, from, to time.Time) (*service.OrderReport, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc    ReportServicer
	logger *zap.Logger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(svc ReportServicer, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{svc: svc, logger: orNop(logger)}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted at /reports behind an ADMIN/RESTAURANT role check.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.Orders)
}

// --- Response types ---

type statusCountResponse struct {
	Status     string `json:"status"`
	OrderCount int64  `json:"order_count"`
	Revenue    string `json:"revenue"`
}

type orderReportResponse struct {
	InProgress       int64                 `json:"in_progress"`
	Completed        int64                 `json:"completed"`
	Failed           int64                 `json:"failed"`
	DeliveredRevenue string                `json:"delivered_revenue"`
	ByStatus         []statusCountResponse `json:"by_status"`
}

// --- Handlers ---

// Orders handles GET /reports/orders?restaurantId=&dateFrom=&dateTo=.
// Dates default to the last 30 days.
func (h *ReportsHandler) Orders(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, "not authenticated")
		return
	}

	restaurantID, err := parseOptionalUUID(r.URL.Query().Get("restaurantId"), "restaurantId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	report, err := h.svc.Report(r.Context(), actor, restaurantID, from, to)
	if err != nil {
		writeServiceError(w, h.logger, "order report", err)
		return
	}

	resp := orderReportResponse{
		InProgress:       report.InProgress,
		Completed:        report.Completed,
		Failed:           report.Failed,
		DeliveredRevenue: report.DeliveredRevenue.StringFixed(2),
		ByStatus:         make([]statusCountResponse, len(report.ByStatus)),
	}
	for i, c := range report.ByStatus {
		resp.ByStatus[i] = statusCountResponse{
			Status:     string(c.Status),
			OrderCount: c.Count,
			Revenue:    c.Revenue.StringFixed(2),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseDateRange reads dateFrom/dateTo, defaulting to the 30 days ending
// today. A date-only dateTo includes that whole day.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	q, err := parseListQuery(r)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, to := q.DateFrom, q.DateTo
	if to.IsZero() {
		to = time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errDateRange
	}
	return from, to, nil
}
