// Package handler exposes the operational HTTP surface of the replenishment
// worker: a manual run trigger and a view of recent run results.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
	"github.com/compraflow/compraflow-backend/internal/replenish/service"
	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/errors"
	"github.com/compraflow/compraflow-backend/pkg/httputil"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

// Runner triggers replenishment runs. Satisfied by service.Engine.
type Runner interface {
	RunForOrganization(ctx context.Context, orgID, jobID string) (*service.RunResult, error)
	RunAll(ctx context.Context, jobID string) ([]*service.RunResult, error)
}

// AuditReader lists audit entries for operator inspection. Satisfied by
// repository.AuditRepository.
type AuditReader interface {
	ListByAction(ctx context.Context, action string, page, perPage int) ([]*repository.AuditEntry, int64, error)
	ListByEntity(ctx context.Context, entityType, entityID string, page, perPage int) ([]*repository.AuditEntry, int64, error)
}

// Handler handles replenishment HTTP requests
type Handler struct {
	runner Runner
	runLog *service.RunLog
	audit  AuditReader
	logger *logger.Logger
}

// New creates a new replenishment handler
func New(runner Runner, runLog *service.RunLog, audit AuditReader, log *logger.Logger) *Handler {
	return &Handler{
		runner: runner,
		runLog: runLog,
		audit:  audit,
		logger: log.WithComponent("replenish_handler"),
	}
}

// RegisterRoutes registers the replenishment routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/replenish", func(r chi.Router) {
		r.Post("/run", h.Run)
		r.Post("/run-all", h.RunAll)
		r.Get("/runs", h.RecentRuns)
		r.Get("/audit", h.ListAudit)
	})
}

type runRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	JobID          string `json:"job_id" validate:"omitempty,max=100"`
}

// Run triggers a replenishment run for one organization.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	result, err := h.runner.RunForOrganization(r.Context(), req.OrganizationID, jobID)
	if result != nil {
		h.runLog.Record(result)
	}
	if err != nil {
		h.logger.Error().Err(err).
			Str("org_id", req.OrganizationID).
			Str("job_id", jobID).
			Msg("manual replenishment run failed")
		if appErr := database.MapPQError(err); appErr != nil {
			httputil.Error(w, appErr)
			return
		}
		httputil.Error(w, errors.Internal("replenishment run failed"))
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

type runAllRequest struct {
	JobID string `json:"job_id" validate:"omitempty,max=100"`
}

// RunAll triggers a replenishment sweep over all active organizations.
func (h *Handler) RunAll(w http.ResponseWriter, r *http.Request) {
	var req runAllRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if err := httputil.Validate(req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	results, err := h.runner.RunAll(r.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("manual sweep failed")
		httputil.Error(w, errors.Internal("replenishment sweep failed"))
		return
	}

	for _, result := range results {
		h.runLog.Record(result)
	}

	httputil.JSON(w, http.StatusOK, results)
}

// RecentRuns returns the most recent run results, newest first.
func (h *Handler) RecentRuns(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.runLog.Recent())
}

type listAuditRequest struct {
	OrganizationID string `validate:"required,uuid"`
	Action         string `validate:"omitempty,max=100"`
	EntityType     string `validate:"omitempty,max=100"`
	EntityID       string `validate:"omitempty,max=200"`
	Page           int    `validate:"min=1"`
	PerPage        int    `validate:"min=1,max=100"`
}

// ListAudit returns the organization's audit trail filtered by action or by
// entity, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := listAuditRequest{
		OrganizationID: q.Get("organization_id"),
		Action:         q.Get("action"),
		EntityType:     q.Get("entity_type"),
		EntityID:       q.Get("entity_id"),
		Page:           1,
		PerPage:        20,
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("page must be a number"))
			return
		}
		req.Page = page
	}
	if v := q.Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("per_page must be a number"))
			return
		}
		req.PerPage = perPage
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	ctx := org.WithOrgID(r.Context(), req.OrganizationID)

	var entries []*repository.AuditEntry
	var total int64
	var err error
	switch {
	case req.Action != "":
		entries, total, err = h.audit.ListByAction(ctx, req.Action, req.Page, req.PerPage)
	case req.EntityType != "" && req.EntityID != "":
		entries, total, err = h.audit.ListByEntity(ctx, req.EntityType, req.EntityID, req.Page, req.PerPage)
	default:
		httputil.Error(w, errors.BadRequest("either action or entity_type and entity_id must be provided"))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).
			Str("org_id", req.OrganizationID).
			Msg("audit listing failed")
		httputil.Error(w, errors.Internal("failed to list audit entries"))
		return
	}

	if entries == nil {
		entries = []*repository.AuditEntry{}
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"entries":  entries,
		"total":    total,
		"page":     req.Page,
		"per_page": req.PerPage,
	})
}
