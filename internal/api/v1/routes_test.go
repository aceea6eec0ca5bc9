package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	v1 "github.com/BillSOS/CleverSyncSOS-sub001/internal/api/v1"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/scope"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/service"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/service/mocks"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/engine"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/history"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/lock"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/upsert"
)

var startedAt = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func serve(t *testing.T, svc service.SyncService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	v1.Router(svc).ServeHTTP(rr, req)
	return rr
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSyncService(ctrl)

	summary := &orchestrator.Summary{
		RunID:     uuid.New(),
		Scope:     "district:d1",
		StartedAt: startedAt,
		Duration:  3 * time.Second,
		Total:     2,
		Succeeded: 1,
		Skipped:   1,
		Results: []orchestrator.TenantResult{
			{
				TenantID:   1,
				TenantName: "Lincoln Elementary",
				Outcome:    status.OutcomeSuccess,
				Mode:       status.SyncModeFull,
				Baseline:   "E500",
				Entities: []engine.EntityResult{{
					EntityType:  roster.EntityStudent,
					Status:      status.RunStatusSuccess,
					Counts:      upsert.Counts{Examined: 8, Updated: 8},
					Deactivated: 10,
					HardDeleted: 2,
				}},
			},
			{
				TenantID: 2,
				Outcome:  status.OutcomeSkipped,
				Holder:   &lock.Info{Scope: "school:2", Holder: "worker-9", AcquiredAt: startedAt, Age: time.Minute},
			},
		},
	}

	svc.EXPECT().Sync(gomock.Any(), orchestrator.Request{
		Scope:     "district:d1",
		Mode:      orchestrator.ModeIncremental,
		ForceFull: true,
		Initiator: "api",
	}).Return(summary, nil)

	rr := serve(t, svc, http.MethodPost, "/sync", `{"scope":"district:d1","mode":"incremental","full":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp v1.SyncResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, summary.RunID.String(), resp.RunID)
	assert.Equal(t, int64(3000), resp.DurationMS)
	require.Len(t, resp.Tenants, 2)

	first := resp.Tenants[0]
	assert.Equal(t, "Success", first.Outcome)
	assert.Equal(t, "FULL", first.Mode)
	assert.Equal(t, 20, first.Changed)
	require.Len(t, first.Entities, 1)
	assert.Equal(t, 2, first.Entities[0].HardDeleted)

	second := resp.Tenants[1]
	assert.Equal(t, "Skipped", second.Outcome)
	require.NotNil(t, second.LockedBy)
	assert.Equal(t, "worker-9", second.LockedBy.Holder)
	assert.Equal(t, 60.0, second.LockedBy.AgeSeconds)
}

func TestTriggerSync_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantError  string
	}{
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest, wantError: "invalid request body"},
		{name: "unknown field", body: `{"scope":"all","tenants":[1]}`, wantStatus: http.StatusBadRequest},
		{name: "missing scope", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "scope is required"},
		{name: "unknown mode", body: `{"scope":"all","mode":"delta"}`, wantStatus: http.StatusBadRequest, wantError: "unknown mode"},
		{name: "negative concurrency", body: `{"scope":"all","concurrency":-1}`, wantStatus: http.StatusBadRequest},
		{
			name:       "invalid scope",
			body:       `{"scope":"campus:1"}`,
			serviceErr: &scope.Error{Code: scope.CodeInvalidScope, Token: "campus:1", Reason: "unknown scope kind"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "scope not found",
			body:       `{"scope":"school:99"}`,
			serviceErr: &scope.Error{Code: scope.CodeScopeNotFound, Token: "school:99", Reason: "no such school"},
			wantStatus: http.StatusNotFound,
			wantError:  "no such school",
		},
		{
			name:       "directory failure",
			body:       `{"scope":"all"}`,
			serviceErr: errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "sync failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockSyncService(ctrl)
			if tt.serviceErr != nil {
				svc.EXPECT().Sync(gomock.Any(), gomock.Any()).Return(nil, tt.serviceErr)
			}

			rr := serve(t, svc, http.MethodPost, "/sync", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantError)
		})
	}
}

func TestGetLock(t *testing.T) {
	t.Parallel()

	t.Run("held", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSyncService(ctrl)
		svc.EXPECT().LockInfo(gomock.Any(), "school:5").Return(&lock.Info{
			Scope:      "school:5",
			Holder:     "worker-1",
			Initiator:  "scheduler",
			AcquiredAt: startedAt,
			ExpiresAt:  startedAt.Add(45 * time.Minute),
			Age:        90 * time.Second,
		}, nil)

		rr := serve(t, svc, http.MethodGet, "/locks/SCHOOL:5", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp v1.LockResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "worker-1", resp.Holder)
		assert.Equal(t, "scheduler", resp.Initiator)
		assert.Equal(t, 90.0, resp.AgeSeconds)
	})

	t.Run("free", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSyncService(ctrl)
		svc.EXPECT().LockInfo(gomock.Any(), "district:d1").Return(nil, nil)

		rr := serve(t, svc, http.MethodGet, "/locks/district:d1", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid scope", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		rr := serve(t, mocks.NewMockSyncService(ctrl), http.MethodGet, "/locks/school:abc", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSyncService(ctrl)
		svc.EXPECT().LockInfo(gomock.Any(), "all").Return(nil, errors.New("timeout"))

		rr := serve(t, svc, http.MethodGet, "/locks/all", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestListHistory(t *testing.T) {
	t.Parallel()

	ended := startedAt.Add(time.Minute)
	records := []history.Record{{
		ID:              uuid.New(),
		RunID:           uuid.New(),
		TenantID:        5,
		EntityType:      roster.EntityTeacher,
		Mode:            status.SyncModeIncremental,
		Status:          status.RunStatusPartial,
		StartedAt:       startedAt,
		EndedAt:         &ended,
		RecordsExamined: 4,
		RecordsChanged:  2,
		RecordsFailed:   1,
		Error:           "upsert: constraint failed",
		LastEventID:     "E102",
	}}

	t.Run("default limit", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSyncService(ctrl)
		svc.EXPECT().History(gomock.Any(), int64(5)).Return(records, nil)

		rr := serve(t, svc, http.MethodGet, "/tenants/5/history", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp []v1.HistoryResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "PARTIAL", resp[0].Status)
		assert.Equal(t, "teacher", resp[0].EntityType)
		assert.Equal(t, "E102", resp[0].LastEventID)
		require.NotNil(t, resp[0].EndedAt)
	})

	t.Run("explicit limit", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSyncService(ctrl)
		svc.EXPECT().History(gomock.Any(), int64(5), gomock.Any()).Return(nil, nil)

		rr := serve(t, svc, http.MethodGet, "/tenants/5/history?limit=3", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("limit rejected by service", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSyncService(ctrl)
		svc.EXPECT().History(gomock.Any(), int64(5), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, opts ...service.Option[service.HistoryOptions]) ([]history.Record, error) {
				var o service.HistoryOptions
				for _, opt := range opts {
					if err := opt(&o); err != nil {
						return nil, err
					}
				}
				return nil, nil
			})

		rr := serve(t, svc, http.MethodGet, "/tenants/5/history?limit=100000", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad tenant id", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		rr := serve(t, mocks.NewMockSyncService(ctrl), http.MethodGet, "/tenants/zero/history", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		rr := serve(t, mocks.NewMockSyncService(ctrl), http.MethodGet, "/tenants/5/history?limit=ten", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
