package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tidy/internal/auth"
	"github.com/MrSnakeDoc/tidy/internal/config"
	"github.com/MrSnakeDoc/tidy/internal/connect"
	"github.com/MrSnakeDoc/tidy/internal/database"
	"github.com/MrSnakeDoc/tidy/internal/gateway"
	"github.com/MrSnakeDoc/tidy/internal/httpserver"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/redis"
	"github.com/MrSnakeDoc/tidy/internal/refresh"
	"github.com/MrSnakeDoc/tidy/internal/scheduler"
	"github.com/MrSnakeDoc/tidy/internal/sources/seed"
	redisstore "github.com/MrSnakeDoc/tidy/internal/store/redis"
	"github.com/MrSnakeDoc/tidy/internal/store/sqlstore"
	"github.com/MrSnakeDoc/tidy/internal/utils"
	"github.com/MrSnakeDoc/tidy/internal/version"
)

// App holds the resources shared by every command: the database pool and,
// when configured, the Redis client.
type App struct {
	cfg         *config.Config
	logger      logger.Logger
	db          *sql.DB
	redisClient *goredis.Client // nil when TIDY_REDIS_ADDR is empty
	redisStore  *redisstore.Store

	Favorites *sqlstore.FavoriteStore
	Users     *sqlstore.UserStore
}

// New loads the configuration, connects to the database and, when
// configured, to Redis.
func New() (*App, error) {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	db, err := database.Open(database.ConnectOptions{
		Driver:          cfg.DBDriver,
		Host:            cfg.MySQLHost,
		Port:            cfg.MySQLPort,
		User:            cfg.MySQLUser,
		Password:        cfg.MySQLPassword,
		Database:        cfg.MySQLDatabase,
		TLS:             cfg.MySQLTLS,
		Path:            cfg.SQLitePath,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		Retry: connect.Options{
			ConnectTimeout: cfg.DBConnectTimeout,
			RetryInterval:  cfg.DBRetryInterval,
			MaxWait:        cfg.DBMaxWait,
			PingTimeout:    cfg.DBPingTimeout,
			WarnThreshold:  cfg.DBWarnThreshold,
		},
	}, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{
		cfg:       cfg,
		logger:    loggerClient,
		db:        db,
		Favorites: sqlstore.NewFavoriteStore(db),
		Users:     sqlstore.NewUserStore(db),
	}

	if cfg.RedisAddr == "" {
		loggerClient.Info("Redis not configured: refresh history and session revocation disabled")
		return a, nil
	}

	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:         cfg.RedisAddr,
		User:         cfg.RedisUser,
		Password:     cfg.RedisPassword,
		RedisDB:      cfg.RedisDB,
		DialTimeout:  cfg.RedisDT,
		ReadTimeout:  cfg.RedisRT,
		WriteTimeout: cfg.RedisWT,
		PoolSize:     cfg.RedisPoolSize,
		Retry: connect.Options{
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		},
	}, loggerClient)
	if err != nil {
		utils.CloseLogged(db, "database", loggerClient)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redisClient = redisClient
	a.redisStore = redisstore.NewStore(redisClient)
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Migrate creates the tables for the configured driver.
func (a *App) Migrate(ctx context.Context) error {
	return sqlstore.Migrate(ctx, a.db, a.cfg.DBDriver)
}

// Seeder returns an importer writing to the favorites store.
func (a *App) Seeder() *seed.Importer {
	return seed.NewImporter(a.Favorites, a.logger)
}

// Refresher builds the star refresher with its GitHub gateway and, when
// Redis is up, the report sink.
func (a *App) Refresher() (*refresh.Refresher, error) {
	schedule, err := refresh.ParseSchedule(a.cfg.RefreshWeekday, a.cfg.RefreshTimezone)
	if err != nil {
		return nil, err
	}
	gh, err := a.gitHub()
	if err != nil {
		return nil, err
	}

	var sink refresh.ReportSink
	if a.redisStore != nil {
		sink = a.redisStore
	}
	return refresh.New(a.Favorites, gh, sink, refresh.Options{
		Schedule:         schedule,
		BatchSize:        a.cfg.RefreshBatchSize,
		WriteConcurrency: a.cfg.RefreshWriteConcurrency,
	}, a.logger), nil
}

func (a *App) gitHub() (*gateway.GitHubGateway, error) {
	return gateway.NewGitHubGateway(a.cfg.GitHubToken, a.cfg.GitHubGraphQLURL, a.logger)
}

func (a *App) sessions() (*auth.Manager, error) {
	keys, err := auth.NewKeyStore(a.cfg.JWTKeyID, a.cfg.JWTSecret, a.cfg.JWTRetiredKeys)
	if err != nil {
		return nil, err
	}
	var revoker auth.Revoker
	if a.redisStore != nil {
		revoker = a.redisStore
	}
	return auth.NewManager(keys, a.cfg.SessionTTL, revoker, a.logger), nil
}

// Serve runs the HTTP server and the refresh scheduler until SIGINT/SIGTERM.
func (a *App) Serve() error {
	a.logger.Infof("🚀 Starting tidy %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	refresher, err := a.Refresher()
	if err != nil {
		return fmt.Errorf("failed to build star refresher: %w", err)
	}
	gh, err := a.gitHub()
	if err != nil {
		return fmt.Errorf("failed to build GitHub client: %w", err)
	}
	sessions, err := a.sessions()
	if err != nil {
		return fmt.Errorf("failed to build session manager: %w", err)
	}

	d := deps.Deps{
		Logger:           a.logger,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		AllowedHosts:     a.cfg.AllowedHosts,
		AllowedCIDRS:     a.cfg.AllowedCIDRS,
		CronAllowedCIDRS: a.cfg.CronAllowedCIDRS,
		CronSecret:       a.cfg.CronSecret,
		TrustProxy:       a.cfg.TrustProxy,
		RequestTimeout:   a.cfg.RequestTimeout,
		CookieSecure:     a.cfg.CookieSecure,
		LoginBurst:       a.cfg.LoginBurst,
		LoginRefillRate:  a.cfg.LoginRefillRate,
		Favorites:        a.Favorites,
		Auth:             auth.NewAuthenticator(a.Users, sessions),
		Sessions:         sessions,
		Refresher:        refresher,
		GitHub:           gh,
		Database:         a.Favorites,
	}
	if a.redisStore != nil {
		d.Reports = a.redisStore
		d.RedisCheck = a.redisStore
	}

	server := httpserver.New(a.cfg, a.logger, d)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sched *scheduler.StarRefreshScheduler
	if a.cfg.RefreshScheduler {
		sched = scheduler.NewStarRefreshScheduler(refresher, a.logger, a.cfg.RefreshInterval)
		sched.Start(ctx)
	} else {
		a.logger.Info("in-process star refresh disabled, waiting for the HTTP trigger")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if runErr == nil {
		a.logger.Info("✅ tidy stopped cleanly")
	}
	return runErr
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	utils.CloseLogged(a.db, "database", a.logger)
	_ = a.logger.Sync()
}
