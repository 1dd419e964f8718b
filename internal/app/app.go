package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nftopia/analytics/internal/analytics"
	"github.com/nftopia/analytics/internal/auth"
	"github.com/nftopia/analytics/internal/behavior"
	"github.com/nftopia/analytics/internal/config"
	"github.com/nftopia/analytics/internal/database"
	"github.com/nftopia/analytics/internal/handler"
	"github.com/nftopia/analytics/internal/logger"
	"github.com/nftopia/analytics/internal/metrics"
	"github.com/nftopia/analytics/internal/middleware"
	"github.com/nftopia/analytics/internal/repository"
	"github.com/nftopia/analytics/internal/security"
	"github.com/nftopia/analytics/internal/tracking"
	cohortworker "github.com/nftopia/analytics/internal/worker/cohort"
	"github.com/nftopia/analytics/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスコレクターの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	walletRepo := repository.NewPostgresWalletConnectionRepo(db)
	pageViewRepo := repository.NewPostgresPageViewRepo(db)
	behaviorRepo := repository.NewPostgresBehaviorMetricsRepo(db)
	cohortRepo := repository.NewPostgresRetentionCohortRepo(db)

	// 4. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	cohortBuilder := analytics.NewCohortBuilder(sessionRepo, cohortRepo, slog.Default(), collector)
	sessionAnalyzer := analytics.NewSessionAnalyzer(sessionRepo, slog.Default())
	walletAnalyzer := analytics.NewWalletAnalyzer(walletRepo, slog.Default())
	segmenter := analytics.NewSegmenter(behaviorRepo, slog.Default())
	pageAnalyzer := analytics.NewPageAnalyzer(pageViewRepo, slog.Default())

	behaviorService := behavior.NewService(
		sessionRepo, pageViewRepo, walletRepo, behaviorRepo,
		slog.Default(), collector,
	)

	sanitizer := security.NewInputSanitizer()
	trackingService := tracking.NewService(
		walletRepo, pageViewRepo, behaviorService, sanitizer,
		slog.Default(), collector,
	)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitTracking),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		HealthChecker: db,
		AuthHandler: handler.NewAuthHandler(authService, handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		}, slog.Default()),
		AnalyticsHandler: handler.NewAnalyticsHandler(
			cohortBuilder, sessionAnalyzer, walletAnalyzer, segmenter, pageAnalyzer,
		),
		TrackingHandler: handler.NewTrackingHandler(trackingService, slog.Default()),
		SessionFinder:   sessionRepo,
		UserFinder:      userRepo,
		RateLimiter:     rateLimiter,
		Logger:          slog.Default(),
		RequestRecorder: collector,
		AllowedOrigin:   cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
	})

	// 6. メトリクスサーバーの起動（Prometheusスクレイプ用に別ポートで提供）
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// コホート再計算スケジューラと行動メトリクスの再計算ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. メトリクスコレクターの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	walletRepo := repository.NewPostgresWalletConnectionRepo(db)
	pageViewRepo := repository.NewPostgresPageViewRepo(db)
	behaviorRepo := repository.NewPostgresBehaviorMetricsRepo(db)
	cohortRepo := repository.NewPostgresRetentionCohortRepo(db)

	// 4. ジョブの初期化
	cohortBuilder := analytics.NewCohortBuilder(sessionRepo, cohortRepo, slog.Default(), collector)
	scheduler := cohortworker.NewScheduler(cohortBuilder, slog.Default())

	behaviorService := behavior.NewService(
		sessionRepo, pageViewRepo, walletRepo, behaviorRepo,
		slog.Default(), collector,
	)
	refreshJob := refresh.NewJob(behaviorService, sessionRepo, slog.Default(), cfg.BehaviorStaleAfter)

	// 5. メトリクスサーバーの起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cohort_rebuild_interval", cfg.CohortRebuildInterval),
		slog.Duration("refresh_interval", cfg.RefreshInterval),
	)

	// 行動メトリクスの再計算ジョブをバックグラウンドで起動
	go refreshJob.Start(ctx, cfg.RefreshInterval)

	// コホート再計算スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.CohortRebuildInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
