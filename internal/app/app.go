package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/coliana/internal/config"
	"github.com/hitoshi/coliana/internal/database"
	"github.com/hitoshi/coliana/internal/handler"
	"github.com/hitoshi/coliana/internal/intake"
	"github.com/hitoshi/coliana/internal/lambdaproxy"
	"github.com/hitoshi/coliana/internal/logger"
	"github.com/hitoshi/coliana/internal/metrics"
	"github.com/hitoshi/coliana/internal/middleware"
	"github.com/hitoshi/coliana/internal/options"
	"github.com/hitoshi/coliana/internal/profile"
	"github.com/hitoshi/coliana/internal/repository"
	"github.com/hitoshi/coliana/internal/retell"
	"github.com/hitoshi/coliana/internal/security"
	"github.com/hitoshi/coliana/internal/sheet"
)

const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。exportのCSVはos.Stdoutに書き出す。
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
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandLambda:
		return runLambda(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandExport:
		return runExport(context.Background(), os.Stdout, cfg, commandArg(args, 0))
	default:
		return runServe(cfg)
	}
}

// store はストレージバックエンドの初期化結果。
type store struct {
	repos  *repository.Set
	health handler.HealthChecker // nilの場合はヘルスチェックで依存先を確認しない
	close  func()
}

// openStore は設定に応じてPostgreSQLまたはインメモリワークブックのリポジトリ一式を構築する。
// SchemaStrictの場合、スキーマが期待と一致しなければエラーを返す。
func openStore(ctx context.Context, cfg *config.Config, layout *sheet.Layout, log *slog.Logger) (*store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return openMemoryStore(cfg, layout, log)
	default:
		return openPostgresStore(ctx, cfg, log)
	}
}

func openPostgresStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*store, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if err := database.CheckSchema(cfg.DatabaseURL); err != nil {
		if cfg.SchemaStrict {
			db.Close()
			return nil, fmt.Errorf("schema check failed: %w", err)
		}
		log.Warn("schema check failed, continuing because SCHEMA_STRICT is disabled",
			slog.String("error", err.Error()),
		)
	}

	return &store{
		repos:  repository.NewPostgresSet(db),
		health: db,
		close:  func() { _ = db.Close() },
	}, nil
}

func openMemoryStore(cfg *config.Config, layout *sheet.Layout, log *slog.Logger) (*store, error) {
	wb := sheet.NewWorkbook()

	if cfg.SheetSeedDir != "" {
		loaded, err := sheet.LoadDir(wb, cfg.SheetSeedDir, layout.Schemas())
		if err != nil {
			return nil, fmt.Errorf("failed to load seed tables: %w", err)
		}
		log.Info("seed tables loaded",
			slog.String("dir", cfg.SheetSeedDir),
			slog.Any("tables", loaded),
		)
	}

	if errs := sheet.ValidateWorkbook(wb, layout.Schemas()); len(errs) > 0 {
		if cfg.SchemaStrict {
			return nil, fmt.Errorf("schema check failed: %w", errors.Join(errs...))
		}
		for _, e := range errs {
			log.Warn("table header does not match schema", slog.String("error", e.Error()))
		}
	}

	return &store{
		repos: repository.NewSheetSet(wb, layout),
		close: func() {},
	}, nil
}

// buildRouter はサービス層とミドルウェアをワイヤリングしてHTTPハンドラーを返す。
// 返り値のstopはレート制限のクリーンアップを停止する。
func buildRouter(cfg *config.Config, reg *options.Registry, st *store, log *slog.Logger) (http.Handler, func()) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(promReg)

	guard := security.NewURLGuard()
	webCalls := retell.NewClient(guard.NewSafeClient(cfg.RetellTimeout), log, retell.Config{
		APIKey:         cfg.RetellAPIKey,
		Endpoint:       cfg.RetellEndpoint,
		DefaultAgentID: cfg.RetellDefaultAgentID,
	})

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitSubmissions), log)

	deps := &handler.RouterDeps{
		Logger:            log,
		Registry:          reg,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Recorder:          collector,
		MetricsHandler:    metrics.Handler(promReg),
		HealthChecker:     st.health,

		IntakeService:  intake.NewService(st.repos, reg, collector, log),
		ProfileService: profile.NewService(st.repos.Users, collector, log),
		WebCalls:       webCalls,
		Submission: handler.SubmissionConfig{
			UnknownFormTypePolicy: handler.FormTypePolicy(cfg.UnknownFormTypePolicy),
			DiagnosticPayload:     cfg.DiagnosticPayloadEnabled,
			MaxBodyBytes:          cfg.MaxBodyBytes,
		},
	}

	return handler.NewRouter(deps), limiter.Stop
}

// prepare はオプション定義とストレージを読み込み、HTTPハンドラーを構築する。
func prepare(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	log := slog.Default()

	reg, err := options.Load(cfg.OptionsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load form options: %w", err)
	}

	st, err := openStore(ctx, cfg, sheet.NewLayout(reg), log)
	if err != nil {
		return nil, nil, err
	}

	router, stopLimiter := buildRouter(cfg, reg, st, log)
	cleanup := func() {
		stopLimiter()
		st.close()
	}
	return router, cleanup, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	router, cleanup, err := prepare(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

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

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runLambda はAPI Gatewayプロキシ統合のLambda関数として起動する。
// lambda.Startは戻らないため、後始末はプロセス終了に任せる。
func runLambda(cfg *config.Config) error {
	router, _, err := prepare(context.Background(), cfg)
	if err != nil {
		return err
	}

	slog.Info("lambda handler starting")
	lambda.Start(lambdaproxy.New(router).Handle)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=%s, got %q", config.BackendPostgres, cfg.StorageBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runExport はtableの内容をワイドレイアウトのCSVとしてoutに書き出す。
// STORAGE_BACKEND=memoryの場合、exportは新しいプロセスで空のワークブックを作るため、
// 出力されるのはSHEET_SEED_DIRのCSVを正規の列順に並べ直した内容だけになる。
// 稼働中のサーバーが受け付けた送信を取り出すにはPostgreSQLバックエンドを使う。
func runExport(ctx context.Context, out io.Writer, cfg *config.Config, table string) error {
	if table == "" {
		return &UnknownTableError{}
	}

	reg, err := options.Load(cfg.OptionsFile)
	if err != nil {
		return fmt.Errorf("failed to load form options: %w", err)
	}
	layout := sheet.NewLayout(reg)

	st, err := openStore(ctx, cfg, layout, slog.Default())
	if err != nil {
		return err
	}
	defer st.close()

	if err := exportTable(ctx, out, st.repos, layout, table); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
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

var _ handler.HealthChecker = (*sql.DB)(nil)
