package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
	"github.com/slipstreamlabs/recordwatch/internal/mocks"
	"github.com/slipstreamlabs/recordwatch/internal/service"
)

type routerFixture struct {
	handler http.Handler
	store   *mocks.MockSearchJobStore
	jobs    *mocks.MockJobRepository
}

func newRouterFixture(t *testing.T, ctrl *gomock.Controller) routerFixture {
	t.Helper()

	store := mocks.NewMockSearchJobStore(ctrl)
	jobs := mocks.NewMockJobRepository(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	searches, err := service.NewSearchService(service.SearchServiceOptions{
		Store:  store,
		Jobs:   jobs,
		Logger: logger,
	})
	require.NoError(t, err)

	jobSvc := service.MustNewJobService(service.JobServiceOptions{
		Repo:         jobs,
		DefaultLease: 30 * time.Second,
		Logger:       logger,
	})

	handler := NewRouter(RouterServices{
		Searches: searches,
		Jobs:     jobSvc,
		APIToken: "test-token",
		Logger:   logger,
	})
	return routerFixture{handler: handler, store: store, jobs: jobs}
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

func TestRouter_HealthIsUnauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouter_APIRequiresBearerToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/stats/map_search", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/stats/map_search", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_CreateSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	t.Run("accepted", func(t *testing.T) {
		f.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		f.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.Job{ID: "queue-1"}, nil)

		body := strings.NewReader(`{"subject_username":"speedking","time_window":"1d"}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/searches", body)))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"job_id"`)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	})

	t.Run("validation failure is a 400", func(t *testing.T) {
		body := strings.NewReader(`{"subject_username":"","time_window":"1d"}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/searches", body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "validation")
	})

	t.Run("malformed json is a 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(
			httptest.NewRequest(http.MethodPost, "/api/searches", strings.NewReader("{")),
		))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_json")
	})
}

func TestRouter_GetSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	t.Run("found", func(t *testing.T) {
		f.store.EXPECT().Get(gomock.Any(), "job-1").Return(&model.SearchJob{
			ID:      "job-1",
			Subject: "speedking",
			Window:  model.TimeWindowDay,
			Status:  model.SearchStatusCompleted,
		}, nil)

		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/searches/job-1", nil)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	})

	t.Run("expired record reads as 404", func(t *testing.T) {
		f.store.EXPECT().Get(gomock.Any(), "job-gone").
			Return(nil, apperrors.NotFound("search job not found"))

		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/searches/job-gone", nil)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_JobStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	t.Run("returns counts", func(t *testing.T) {
		f.jobs.EXPECT().Stats(gomock.Any(), model.JobTypeMapperCheck).Return(&model.JobStats{
			Pending: 3,
			Running: 1,
			Failed:  2,
		}, nil)

		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(
			httptest.NewRequest(http.MethodGet, "/api/jobs/stats/mapper_check", nil),
		))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown type is a 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, authed(
			httptest.NewRequest(http.MethodGet, "/api/jobs/stats/compactor", nil),
		))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
