package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crboard/internal/changerequest/aggregate"
	"crboard/internal/changerequest/importer"
	"crboard/internal/changerequest/models"
	"crboard/internal/changerequest/service"
	"crboard/internal/changerequest/system"
	dErrors "crboard/pkg/domain-errors"
	"crboard/pkg/platform/httputil"
	"crboard/pkg/requestcontext"
)

// MaxImportBytes bounds the body of an import request.
const MaxImportBytes = 8 << 20

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the registry operations the handler needs.
type Service interface {
	Create(ctx context.Context, cr models.ChangeRequest) (models.ChangeRequest, error)
	Update(ctx context.Context, crID string, patch models.Patch) (models.ChangeRequest, error)
	Delete(ctx context.Context, crID string) error
	List(ctx context.Context, raw string) ([]models.ChangeRequest, error)
	GetAll(ctx context.Context) (*models.Registry, error)
	Dashboard(ctx context.Context) (aggregate.Dashboard, error)
	Import(ctx context.Context, rows []service.ImportRow) service.ImportResult
}

// Handler wires the change request endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
	retries int
}

// New constructs a handler. Mutations that lose a concurrent update are
// re-run up to retries more times before the conflict reaches the client.
func New(svc Service, logger *slog.Logger, retries int) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
		retries: retries,
	}
}

// Register mounts the endpoints under /api. The get/add/update/delete paths
// are the ones existing dashboard clients call; /api/crs is the resource
// style equivalent.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})
	api.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})

	api.Get("/getCrs", h.HandleGetAll)
	api.Post("/addCrs", h.HandleCreate)
	api.Patch("/updateCrs", h.HandleUpdate)
	api.Delete("/deleteCrs", h.HandleDelete)

	api.Get("/crs", h.HandleGetAll)
	api.Post("/crs", h.HandleCreate)
	api.Patch("/crs/{crId}", h.HandleUpdate)
	api.Delete("/crs/{crId}", h.HandleDelete)

	api.Get("/systems/{system}/crs", h.HandleList)
	api.Get("/dashboard", h.HandleDashboard)
	api.Post("/import", h.HandleImport)

	r.Mount("/api", api)
}

// HandleGetAll handles GET /api/getCrs and returns the whole document.
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	reg, err := h.service.GetAll(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

// HandleCreate handles POST /api/addCrs.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cr models.ChangeRequest
	if err := httputil.DecodeJSON(r, &cr); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := service.RetryOnConflict(ctx, h.retries, func() (models.ChangeRequest, error) {
		return h.service.Create(ctx, cr)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true, CR: &created})
}

// HandleUpdate handles PATCH /api/updateCrs with {crId, updates}, and
// PATCH /api/crs/{crId} with the updates as the body.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateRequest
	if crID := chi.URLParam(r, "crId"); crID != "" {
		if err := httputil.DecodeJSON(r, &req.Updates); err != nil {
			httputil.WriteError(w, err)
			return
		}
		req.CRID = crID
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := service.RetryOnConflict(ctx, h.retries, func() (models.ChangeRequest, error) {
		return h.service.Update(ctx, req.CRID, req.Updates)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true, CR: &updated})
}

// HandleDelete handles DELETE /api/deleteCrs with {crId}, and
// DELETE /api/crs/{crId}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DeleteRequest
	if crID := chi.URLParam(r, "crId"); crID != "" {
		req.CRID = crID
	} else if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	_, err := service.RetryOnConflict(ctx, h.retries, func() (struct{}, error) {
		return struct{}{}, h.service.Delete(ctx, req.CRID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true})
}

// HandleList handles GET /api/systems/{system}/crs.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "system")
	crs, err := h.service.List(r.Context(), raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{System: system.Normalize(raw), CRs: crs})
}

// HandleDashboard handles GET /api/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleImport handles POST /api/import. The body is a JSON array of
// spreadsheet rows, or CSV when sent as text/csv.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	format := importer.FormatJSON
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == "text/csv" {
		format = importer.FormatCSV
	}

	records, err := importer.Read(http.MaxBytesReader(w, r.Body, MaxImportBytes), format)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid import body"))
		return
	}

	res := h.service.Import(ctx, importer.MapAll(records))
	h.logger.InfoContext(ctx, "import request finished",
		"format", format,
		"rows", len(records),
		"created", res.Created,
		"actor", requestcontext.Actor(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}
