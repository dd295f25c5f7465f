package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"stancesense-cloud/internal/alerts"
	"stancesense-cloud/internal/alerts/gemini"
	"stancesense-cloud/internal/auth"
	"stancesense-cloud/internal/consent"
	"stancesense-cloud/internal/history"
	"stancesense-cloud/internal/monitor"
	"stancesense-cloud/internal/observability/metrics"
	"stancesense-cloud/internal/pipeline"
	"stancesense-cloud/internal/scoring"
	"stancesense-cloud/internal/scoring/model"
	storagepg "stancesense-cloud/internal/storage/postgres"
	"stancesense-cloud/internal/stream"
	"stancesense-cloud/internal/telemetry/interfaces/gateway"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	monitorCfg, err := monitor.LoadConfig()
	if err != nil {
		logger.Fatalf("monitor config error: %v", err)
	}

	metrics.Init(logger)

	var docStore *storagepg.DocumentStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		docStore = storagepg.NewDocumentStore(db)
		if err := docStore.EnsureSchema(context.Background()); err != nil {
			logger.Fatalf("db schema error: %v", err)
		}
	} else {
		logger.Printf("DATABASE_URL not set, persistence disabled")
	}

	engine := scoring.NewEngine(logger, modelOptions(monitorCfg.Models, logger)...)

	var consentService *consent.Service
	if docStore != nil {
		consentService, err = consent.NewService(docStore)
		if err != nil {
			logger.Fatalf("consent service error: %v", err)
		}
	}

	limiter := alerts.NewRateLimiter(monitorCfg.Alerts.CallsPerMinute)
	generatorOpts := []alerts.GeneratorOption{
		alerts.WithKnowledgeBase(alerts.NewKnowledgeBase(monitorCfg.Alerts.Knowledge)),
	}
	if consentService != nil {
		generatorOpts = append(generatorOpts, alerts.WithConsentReader(consentService))
	}
	if timeout := monitorCfg.Alerts.BackendTimeout(); timeout > 0 {
		generatorOpts = append(generatorOpts, alerts.WithBackendTimeout(timeout))
	}
	if cfg.GeminiAPIKey != "" {
		clientOpts := []gemini.ClientOption{}
		if monitorCfg.Alerts.BackendModel != "" {
			clientOpts = append(clientOpts, gemini.WithModel(monitorCfg.Alerts.BackendModel))
		}
		backend, err := gemini.NewClient(cfg.GeminiAPIKey, clientOpts...)
		if err != nil {
			logger.Fatalf("gemini client error: %v", err)
		}
		generatorOpts = append(generatorOpts, alerts.WithBackend(backend))
	} else {
		logger.Printf("GEMINI_API_KEY not set, alerts use knowledge base text only")
	}
	generator := alerts.NewGenerator(limiter, logger, generatorOpts...)

	hub := stream.NewHub(logger)
	runner := pipeline.NewRunner(cfg.PipelineWorkers, cfg.PipelineQueueSize, logger)
	var pipeStore pipeline.DocumentStore
	if docStore != nil {
		pipeStore = docStore
	}
	pipe, err := pipeline.New(engine, generator, hub, runner, pipeStore, logger)
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}

	jwtSecret := []byte(cfg.JWTSecret)
	ingestHandler, err := gateway.NewIngestHandler(pipe, logger, gateway.WithTokenVerifier(func(credential string) (string, error) {
		return auth.ResolveUser(credential, jwtSecret)
	}))
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/", "/ws/"})
	authMiddleware := auth.NewMiddleware(jwtSecret, policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second, cfg.GatewayUserID)

	mux := http.NewServeMux()
	mux.Handle("/ingest/data", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/ws/observer", stream.NewHandler(hub, logger))
	if docStore != nil {
		consentHandler, err := consent.NewHandler(consentService, logger)
		if err != nil {
			logger.Fatalf("consent handler error: %v", err)
		}
		historyHandler, err := history.NewHandler(docStore, logger)
		if err != nil {
			logger.Fatalf("history handler error: %v", err)
		}
		exportHandler, err := history.NewExportHandler(docStore, logger)
		if err != nil {
			logger.Fatalf("export handler error: %v", err)
		}
		mux.Handle("/api/v1/user/consent", consentHandler)
		mux.Handle("/api/v1/history/processed", historyHandler)
		mux.Handle("/api/v1/history/alerts", historyHandler)
		mux.Handle("/api/v1/medications", historyHandler)
		mux.Handle("/api/v1/notes", historyHandler)
		mux.Handle("/api/v1/exports/alerts.pdf", exportHandler)
		mux.Handle("/api/v1/exports/alerts.xlsx", exportHandler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// modelOptions loads the configured model artifacts. A missing or broken
// artifact disables the model for that symptom only; the heuristic scorer
// stays in place.
func modelOptions(paths monitor.ModelPaths, logger *log.Logger) []scoring.EngineOption {
	var opts []scoring.EngineOption
	load := func(symptom, path string, opt func(scoring.Predictor) scoring.EngineOption) {
		if path == "" {
			return
		}
		artifact, err := model.Load(path)
		if err != nil {
			logger.Printf("%s model load failed, heuristic stays active: %v", symptom, err)
			return
		}
		logger.Printf("%s model loaded from %s (version %s)", symptom, path, artifact.Version)
		opts = append(opts, opt(artifact))
	}
	load(scoring.SymptomTremor, paths.Tremor, scoring.WithTremorModel)
	load(scoring.SymptomRigidity, paths.Rigidity, scoring.WithRigidityModel)
	load(scoring.SymptomSlowness, paths.Slowness, scoring.WithSlownessModel)
	load(scoring.SymptomGait, paths.Gait, scoring.WithGaitModel)
	return opts
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
	GatewayUserID     string
	GeminiAPIKey      string
	PipelineWorkers   int
	PipelineQueueSize int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		GatewayUserID:     getenvDefault("GATEWAY_USER_ID", "gateway"),
		GeminiAPIKey:      getenvDefault("GEMINI_API_KEY", ""),
		PipelineWorkers:   getenvIntDefault("PIPELINE_WORKERS", 4),
		PipelineQueueSize: getenvIntDefault("PIPELINE_QUEUE_SIZE", 64),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack forwards to the underlying writer so websocket upgrades work through
// the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
