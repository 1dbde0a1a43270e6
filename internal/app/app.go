package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/secrets/internal/auth"
	"github.com/hitoshi/secrets/internal/config"
	"github.com/hitoshi/secrets/internal/database"
	"github.com/hitoshi/secrets/internal/handler"
	"github.com/hitoshi/secrets/internal/logger"
	"github.com/hitoshi/secrets/internal/metrics"
	"github.com/hitoshi/secrets/internal/middleware"
	"github.com/hitoshi/secrets/internal/repository"
	"github.com/hitoshi/secrets/internal/security"
	"github.com/hitoshi/secrets/internal/session"
	"github.com/hitoshi/secrets/internal/user"
	"github.com/hitoshi/secrets/internal/view"
	"github.com/hitoshi/secrets/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// dotEnvPath は起動時に読み込む.envファイルのパス。
const dotEnvPath = ".env"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINTまたはSIGTERMシグナルを受信するまで実行する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, args)
}

// RunContext はコマンドライン引数からサブコマンドを解析し、ctxがキャンセルされるまで対応するモードで実行する。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
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
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// stores は選択されたバックエンドのリポジトリと後始末をまとめたもの。
type stores struct {
	backend  database.Backend
	users    repository.UserRepository
	sessions repository.SessionRepository
	health   handler.HealthChecker
	close    func()
}

// openStores はDATABASE_URLのスキームに応じてPostgreSQLまたはMongoDBに接続する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	backend, err := database.DetectBackend(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case database.BackendMongo:
		m, err := database.OpenMongo(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &stores{
			backend:  backend,
			users:    repository.NewMongoUserRepo(m.DB),
			sessions: repository.NewMongoSessionRepo(m.DB),
			health:   m,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = m.Close(closeCtx)
			},
		}, nil

	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &stores{
			backend:  backend,
			users:    repository.NewPostgresUserRepo(db),
			sessions: repository.NewPostgresSessionRepo(db),
			health:   db,
			close:    func() { db.Close() },
		}, nil
	}
}

// buildProviders は設定済みの外部IdPのみを有効化する。
func buildProviders(cfg *config.Config) []auth.OAuthProvider {
	client := security.NewProviderClient(cfg.ProviderTimeout)

	var providers []auth.OAuthProvider
	if cfg.Google.Enabled() {
		providers = append(providers, auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			HTTPClient:   client,
		}))
	}
	if cfg.Facebook.Enabled() {
		providers = append(providers, auth.NewFacebookProvider(auth.ProviderConfig{
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURL:  cfg.Facebook.RedirectURL,
			HTTPClient:   client,
		}))
	}
	return providers
}

// newServer は全依存関係をワイヤリングしたHTTPサーバーを構築する。
func newServer(cfg *config.Config, st *stores) (*http.Server, error) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 2. ドメインサービスの初期化
	providers := buildProviders(cfg)
	states := security.NewStateSigner([]byte(cfg.SessionSecret), security.DefaultStateTTL)
	authService := auth.NewService(st.users, states, mc, providers...)
	secretService := user.NewService(st.users, security.NewMarkupDetector(), mc)

	// 3. セッション
	sessions := session.NewManager(st.sessions, session.Config{
		Lifetime:     cfg.SessionLifetime(),
		CookieDomain: cfg.CookieDomain,
		CookieSecure: cfg.CookieSecure,
	})

	// 4. ビュー
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Sessions: sessions,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:      slog.Default(),
		Metrics:     mc,
		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},
		SecretService:  secretService,
		Renderer:       renderer,
		HealthChecker:  st.health,
		MetricsHandler: metrics.Handler(reg),
	})

	slog.Info("identity providers configured",
		slog.Any("providers", authService.Providers()),
	)

	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// runServe はWebサーバーモードで起動する。
// データストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. データストア接続
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.close()

	slog.Info("database connection established", slog.String("backend", string(st.backend)))

	// 2. サーバー構築
	server, err := newServer(cfg, st)
	if err != nil {
		return err
	}

	// 3. HTTPサーバーの起動
	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除をctxがキャンセルされるまで定期実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.close()

	slog.Info("database connection established (worker)", slog.String("backend", string(st.backend)))

	job := cleanup.NewCleanupJob(st.sessions, slog.Default())
	job.Interval = cfg.SessionCleanupInterval

	// ブロッキング
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// indexer はインデックスを作成できるMongoDBリポジトリ。
type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// runMigrate はスキーマを最新にする。
// PostgreSQLは未適用のマイグレーションを順番に適用し、MongoDBはインデックスを作成する。
func runMigrate(ctx context.Context, cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	backend, err := database.DetectBackend(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	if backend == database.BackendPostgres {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
		return nil
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.close()

	for _, repo := range []any{st.users, st.sessions} {
		ix, ok := repo.(indexer)
		if !ok {
			continue
		}
		if err := ix.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database indexes ensured")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
