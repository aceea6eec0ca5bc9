// Package v1 provides the admin API handlers for triggering syncs and
// inspecting locks and history.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/api/common"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/scope"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/service"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

// maxRequestBody bounds the size of request bodies
const maxRequestBody = 1 << 16

// Routes holds the handlers of the v1 admin API
type Routes struct {
	service service.SyncService
}

// Router creates the v1 admin API router
func Router(svc service.SyncService) http.Handler {
	routes := &Routes{service: svc}

	r := chi.NewRouter()
	r.Post("/sync", routes.triggerSync)
	r.Get("/locks/{scope}", routes.getLock)
	r.Get("/tenants/{id}/history", routes.listHistory)
	return r
}

// triggerSync handles POST /api/v1/sync. The run is synchronous; a client
// disconnect cancels tenants that have not started yet.
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	var body SyncRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		common.WriteErrorResponse(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.Scope == "" {
		common.WriteErrorResponse(w, "scope is required", http.StatusBadRequest)
		return
	}
	mode, ok := orchestrator.ParseMode(body.Mode)
	if !ok {
		common.WriteErrorResponse(w, fmt.Sprintf("unknown mode %q", body.Mode), http.StatusBadRequest)
		return
	}
	if body.Concurrency < 0 {
		common.WriteErrorResponse(w, "concurrency cannot be negative", http.StatusBadRequest)
		return
	}

	summary, err := rr.service.Sync(r.Context(), orchestrator.Request{
		Scope:       body.Scope,
		Mode:        mode,
		ForceFull:   body.Full,
		Concurrency: body.Concurrency,
		Initiator:   "api",
	})
	if err != nil {
		writeSyncError(w, err)
		return
	}
	common.WriteJSONResponse(w, NewSyncResponse(summary), http.StatusOK)
}

func writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scope.ErrInvalidScope):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scope.ErrScopeNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("Sync request failed", "error", err)
		common.WriteErrorResponse(w, "sync failed", http.StatusInternalServerError)
	}
}

// getLock handles GET /api/v1/locks/{scope}
func (rr *Routes) getLock(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "scope"))
	if err != nil {
		common.WriteErrorResponse(w, "invalid URL encoding in scope", http.StatusBadRequest)
		return
	}
	sc, err := scope.Parse(raw)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := rr.service.LockInfo(r.Context(), sc.Key())
	if err != nil {
		slog.Error("Failed to read lock", "scope", sc.Key(), "error", err)
		common.WriteErrorResponse(w, "failed to read lock", http.StatusInternalServerError)
		return
	}
	if info == nil {
		common.WriteErrorResponse(w, fmt.Sprintf("no lock held for %s", sc.Key()), http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, NewLockResponse(info), http.StatusOK)
}

// listHistory handles GET /api/v1/tenants/{id}/history?limit=N
func (rr *Routes) listHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, err := common.PositiveIntParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var opts []service.Option[service.HistoryOptions]
	limit, ok, err := common.OptionalIntQuery(r, "limit")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if ok {
		opts = append(opts, service.WithLimit(limit))
	}

	records, err := rr.service.History(r.Context(), tenantID, opts...)
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("Failed to list history", "tenant", tenantID, "error", err)
		common.WriteErrorResponse(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, NewHistoryResponse(records), http.StatusOK)
}
