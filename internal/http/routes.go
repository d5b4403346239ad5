package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/slipstreamlabs/recordwatch/internal/service"
)

// RouterServices holds the services and backends the ops router needs.
type RouterServices struct {
	Searches *service.SearchService
	Jobs     *service.JobService
	DB       *sql.DB
	Redis    redis.UniversalClient

	// APIToken guards every /api/* route. Empty locks the API.
	APIToken string
	Logger   *slog.Logger
}

// NewRouter assembles the ops API. Health stays unauthenticated for probes;
// everything under /api/* requires the bearer token.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	searchHandlers := &SearchHandlers{Svc: services.Searches}
	jobHandlers := &JobHandlers{Svc: services.Jobs}
	healthHandlers := &HealthHandlers{DB: services.DB, Redis: services.Redis}

	api := http.NewServeMux()
	if services.Searches != nil {
		api.HandleFunc("POST /api/searches", searchHandlers.CreateSearch)
		api.HandleFunc("GET /api/searches/{job_id}", searchHandlers.GetSearch)
	}
	if services.Jobs != nil {
		api.HandleFunc("GET /api/jobs/stats/{type}", jobHandlers.Stats)
	}

	auth := RequireBearer(services.APIToken)

	mux := http.NewServeMux()
	mux.Handle("/api/", auth(api))
	mux.HandleFunc("GET /healthz", healthHandlers.Health)
	mux.HandleFunc("HEAD /healthz", healthHandlers.Health)

	var handler http.Handler = mux
	handler = Recover(logger)(handler)
	handler = Logging(logger)(handler)
	return handler
}
