package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian/internal/adjustment"
	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/observability"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/transaction"
	"github.com/meridian-pos/meridian/internal/transfer"
	"github.com/meridian-pos/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Pool               *pgxpool.Pool
	SettingsHandler    *settings.Handler
	StockHandler       *batch.Handler
	TransactionHandler *transaction.Handler
	AdjustmentHandler  *adjustment.Handler
	TransferHandler    *transfer.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// documentRoutes maps created-document routes to the metric label counted
// per successful write.
var documentRoutes = map[string]string{
	"/purchases":            "purchase",
	"/sales":                "sale",
	"/adjustments/increase": "adjustment_increase",
	"/adjustments/decrease": "adjustment_decrease",
	"/transfers":            "transfer",
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(documentCounter(params.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("health check", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.SettingsHandler != nil {
		params.SettingsHandler.MountRoutes(r)
	}
	if params.StockHandler != nil {
		params.StockHandler.MountRoutes(r)
	}
	if params.TransactionHandler != nil {
		params.TransactionHandler.MountRoutes(r)
	}
	if params.AdjustmentHandler != nil {
		params.AdjustmentHandler.MountRoutes(r)
	}
	if params.TransferHandler != nil {
		params.TransferHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}

type createdRecorder struct {
	http.ResponseWriter
	status int
}

func (r *createdRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func documentCounter(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			docType, tracked := documentRoutes[r.URL.Path]
			if !tracked || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			recorder := createdRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(&recorder, r)
			if recorder.status == http.StatusCreated {
				metrics.CountDocument(docType)
			}
		})
	}
}
