package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/auth"
	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/gateway"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/refresh"
)

// FavoriteStore is the CRUD surface of sqlstore.FavoriteStore.
type FavoriteStore interface {
	List(ctx context.Context, filter domain.Filter) ([]domain.Favorite, int, error)
	Categories(ctx context.Context, includePrivate bool) ([]string, error)
	Get(ctx context.Context, id int64) (*domain.Favorite, error)
	Create(ctx context.Context, f domain.Favorite) (*domain.Favorite, error)
	Update(ctx context.Context, id int64, patch domain.Patch) (*domain.Favorite, error)
	Delete(ctx context.Context, id int64) error
}

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
}

type SessionManager interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
	TTL() time.Duration
}

type Refresher interface {
	Run(ctx context.Context) (*refresh.Report, error)
}

type RepositoryLookup interface {
	LookupRepository(ctx context.Context, ref domain.RepositoryRef) (*gateway.RepositoryInfo, error)
}

type ReportHistory interface {
	LastRefreshReport(ctx context.Context) (*refresh.Report, error)
	RefreshHistory(ctx context.Context, limit int) ([]*refresh.Report, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	AllowedHosts     []string      // Host headers allowed to reach /api
	AllowedCIDRS     []string      // IPs allowed to reach readyz
	CronAllowedCIDRS []string      // IPs allowed to trigger the star refresh
	CronSecret       string        // shared bearer secret for the trigger, empty = not required
	TrustProxy       bool          // true behind a trusted reverse proxy (e.g. cloudflared)
	RequestTimeout   time.Duration // per-request timeout of the favorites API
	CookieSecure     bool
	LoginBurst       int
	LoginRefillRate  int // tokens per minute

	Favorites  FavoriteStore
	Auth       Authenticator
	Sessions   SessionManager
	Refresher  Refresher
	GitHub     RepositoryLookup
	Reports    ReportHistory // nil when Redis is disabled
	Database   Pinger
	RedisCheck Pinger // nil when Redis is disabled
}
