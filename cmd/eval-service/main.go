package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/cache"
	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	commonmw "github.com/AmrMustafa282/skillify-analysis/internal/common/http/middleware"
	"github.com/AmrMustafa282/skillify-analysis/internal/common/storage"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/analyzer"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/archive"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/controller"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/harness"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/job"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/middleware"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/pipeline"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/ranking"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/report"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/repository"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/sandbox"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/eval_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()
	dbProvider := db.NewStaticProvider(mysqlDB)

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), defaultStartupTimeout)
	err = repository.EnsureSchema(schemaCtx, dbProvider)
	cancelSchema()
	if err != nil {
		logger.Error(context.Background(), "ensure schema failed", zap.Error(err))
		return
	}

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	// Object storage backs the best-effort evaluation archive only, so the
	// service runs without it.
	var archiver *archive.Archiver
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init object storage failed", zap.Error(err))
			return
		}
		bucketCtx, cancelBucket := context.WithTimeout(context.Background(), defaultStartupTimeout)
		err = objStorage.EnsureBucket(bucketCtx, appCfg.Eval.ArchiveBucket)
		cancelBucket()
		if err != nil {
			logger.Error(context.Background(), "ensure archive bucket failed", zap.Error(err))
			return
		}
		archiver, err = archive.New(objStorage, appCfg.Eval.ArchiveBucket)
		if err != nil {
			logger.Error(context.Background(), "init archiver failed", zap.Error(err))
			return
		}
	} else {
		logger.Warn(context.Background(), "object storage not configured, evaluation archival disabled")
	}

	runner, err := sandbox.New(context.Background(), appCfg.Sandbox)
	if err != nil {
		logger.Error(context.Background(), "init sandbox failed", zap.Error(err))
		return
	}

	registry := harness.DefaultRegistry(appCfg.Harness)
	correctness := analyzer.NewCorrectness(registry, runner, appCfg.Sandbox.DefaultLimits)
	pipe := pipeline.New(correctness)

	assessmentRepo := repository.NewAssessmentRepositoryWithTTL(dbProvider, redisCache, appCfg.Eval.CacheTTL, appCfg.Eval.EmptyCacheTTL)
	solutionRepo := repository.NewSolutionRepository(dbProvider)
	analysisRepo := repository.NewAnalysisRepositoryWithTTL(dbProvider, redisCache, appCfg.Eval.CacheTTL, appCfg.Eval.EmptyCacheTTL)
	jobRepo := repository.NewJobRepository(dbProvider)
	reportRepo := repository.NewReportRepository(dbProvider)

	jobCfg := job.Config{
		Pipeline:       pipe,
		Assessments:    assessmentRepo,
		Solutions:      solutionRepo,
		Analyses:       analysisRepo,
		Jobs:           jobRepo,
		WorkerPoolSize: appCfg.Eval.WorkerPoolSize,
		ItemTimeout:    appCfg.Eval.ItemTimeout,
	}
	if archiver != nil {
		jobCfg.Archiver = archiver
	}
	orch, err := job.New(jobCfg)
	if err != nil {
		logger.Error(context.Background(), "init orchestrator failed", zap.Error(err))
		return
	}

	reportBuilder, err := report.New(report.Config{
		Analyses:  analysisRepo,
		Solutions: solutionRepo,
		Reports:   reportRepo,
	})
	if err != nil {
		logger.Error(context.Background(), "init report builder failed", zap.Error(err))
		return
	}

	evalService, err := service.NewEvalService(service.Config{
		Assessments:  assessmentRepo,
		Solutions:    solutionRepo,
		Analyses:     analysisRepo,
		Orchestrator: orch,
		Ranking:      ranking.NewEngine(analysisRepo, solutionRepo, redisCache),
		Reports:      reportBuilder,
		MaxCodeBytes: appCfg.Eval.MaxCodeBytes,
		Timeouts:     appCfg.Eval.Timeouts,
	})
	if err != nil {
		logger.Error(context.Background(), "init eval service failed", zap.Error(err))
		return
	}

	var authService *service.AuthService
	if appCfg.Auth.JWTSecret != "" {
		authService, err = service.NewAuthService(service.AuthConfig{
			JWTSecret: []byte(appCfg.Auth.JWTSecret),
			JWTIssuer: appCfg.Auth.JWTIssuer,
			TokenTTL:  appCfg.Auth.TokenTTL,
			Operators: appCfg.Auth.Operators,
		})
		if err != nil {
			logger.Error(context.Background(), "init auth service failed", zap.Error(err))
			return
		}
	} else {
		logger.Warn(context.Background(), "auth not configured, mutating endpoints will reject requests")
	}

	rateService := service.NewRateLimitService(redisCache, appCfg.RateLimit.Window, 0)

	httpServer := buildHTTPServer(appCfg.Server, appCfg.RateLimit, evalService, authService, rateService)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "eval http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), defaultDrainTimeout)
	defer cancelDrain()
	if err := evalService.Close(drainCtx); err != nil {
		logger.Error(context.Background(), "orchestrator drain failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, rlCfg RateLimitConfig, evalService *service.EvalService, authService *service.AuthService, rateService *service.RateLimitService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	evalController := controller.NewEvalController(evalService)

	writePolicy := middleware.RateLimitPolicy{
		Window:      rlCfg.Window,
		IPMax:       rlCfg.IPMax,
		OperatorMax: rlCfg.OperatorMax,
	}
	tokenPolicy := middleware.RateLimitPolicy{
		Window: rlCfg.Window,
		IPMax:  rlCfg.TokenIPMax,
	}

	api := router.Group("/api/v1")

	if authService != nil {
		authController := controller.NewAuthController(authService)
		api.POST("/auth/token", middleware.RateLimit(rateService, "auth_token", tokenPolicy), authController.IssueToken)
	}

	guarded := api.Group("", middleware.Auth(authService))
	guarded.POST("/assessments", middleware.RateLimit(rateService, "assessments", writePolicy), evalController.CreateAssessment)
	guarded.POST("/solutions", middleware.RateLimit(rateService, "solutions", writePolicy), evalController.CreateSolution)
	guarded.POST("/jobs", middleware.RateLimit(rateService, "jobs", writePolicy), evalController.CreateJob)
	guarded.POST("/reports/generate", middleware.RateLimit(rateService, "reports", writePolicy), evalController.GenerateReports)

	api.GET("/jobs", evalController.ListJobs)
	api.GET("/jobs/:id", evalController.GetJob)
	api.GET("/jobs/:id/logs", evalController.GetJobLogs)
	api.GET("/jobs/:id/logs/stream", evalController.StreamJobLogs)
	api.GET("/solutions/:id/analysis", evalController.GetAnalysis)
	api.GET("/tests/:id/report", evalController.GetComparativeReport)
	api.GET("/tests/:id/candidates/:candidate_id/report", evalController.GetIndividualReport)
	api.GET("/tests/:id/rankings", evalController.GetRankings)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
