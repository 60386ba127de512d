package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/taskmate/migrations"
	apikeysmod "github.com/dmitrymomot/taskmate/modules/apikeys"
	billingmod "github.com/dmitrymomot/taskmate/modules/billing"
	sandboxmod "github.com/dmitrymomot/taskmate/modules/sandbox"
	"github.com/dmitrymomot/taskmate/pkg/config"
	"github.com/dmitrymomot/taskmate/pkg/httpserver"
	"github.com/dmitrymomot/taskmate/pkg/jwt"
	"github.com/dmitrymomot/taskmate/pkg/logger"
	"github.com/dmitrymomot/taskmate/pkg/pg"
	"github.com/dmitrymomot/taskmate/pkg/ratelimit"
	redispkg "github.com/dmitrymomot/taskmate/pkg/redis"
	"github.com/dmitrymomot/taskmate/pkg/requestid"
	"github.com/dmitrymomot/taskmate/svc/apikeys"
	"github.com/dmitrymomot/taskmate/svc/auth"
	"github.com/dmitrymomot/taskmate/svc/billing"
	"github.com/dmitrymomot/taskmate/svc/sandbox"
	"github.com/dmitrymomot/taskmate/svc/threads"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"taskmate"`

	JWTSecret string `env:"JWT_SECRET,required"`

	SandboxCleanupEvery   time.Duration `env:"SANDBOX_CLEANUP_EVERY" envDefault:"1h"`
	SandboxMaxIdle        time.Duration `env:"SANDBOX_MAX_IDLE" envDefault:"168h"`
	SandboxCleanupEnabled bool          `env:"SANDBOX_CLEANUP_ENABLED" envDefault:"true"`

	HTTP    httpserver.Config
	PG      pg.Config
	Redis   redispkg.Config
	Billing billing.Config
	Sandbox sandbox.HTTPProviderConfig
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	instanceID := uuid.NewString()[:8]
	log := logger.New(
		logger.WithEnvironment(cfg.Environment, cfg.ServiceName),
		logger.WithAttr(slog.String("instance_id", instanceID)),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, ".", log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := redispkg.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	tokens, err := jwt.NewFromString(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("build token service: %w", err)
	}

	threadsSvc := threads.NewService(threads.NewPGStore(pool))

	billingSvc, err := buildBilling(cfg.Billing, pool, threadsSvc, log)
	if err != nil {
		return fmt.Errorf("build billing: %w", err)
	}

	apikeysSvc := apikeys.NewService(apikeys.NewPGStore(pool), apikeys.WithLogger(log))

	sandboxSvc := sandbox.NewService(
		sandbox.NewHTTPProvider(cfg.Sandbox),
		sandbox.NewPGStore(pool),
		sandbox.WithLogger(log),
	)

	resolver, err := auth.NewResolver(tokens, auth.WithKeyAuthenticator(apikeysSvc))
	if err != nil {
		return fmt.Errorf("build auth resolver: %w", err)
	}

	limitStore := ratelimit.NewRedisStore(redisClient)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthHandler(log, instanceID,
		pg.Healthcheck(pool),
		redispkg.Healthcheck(redisClient),
	))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(resolver))
		r.Mount("/billing", billingmod.Router(billingmod.RouterOptions{
			Service: billingSvc,
			Log:     log,
		}))
		r.Mount("/api-keys", apikeysmod.Router(apikeysmod.RouterOptions{
			Service:    apikeysSvc,
			Log:        log,
			LimitStore: limitStore,
		}))
		r.Mount("/sandboxes", sandboxmod.Router(sandboxmod.RouterOptions{
			Service: sandboxSvc,
			Log:     log,
		}))
	})

	if cfg.SandboxCleanupEnabled {
		go sweepSandboxes(ctx, sandboxSvc, cfg.SandboxCleanupEvery, cfg.SandboxMaxIdle, log)
	}

	log.InfoContext(ctx, "starting server",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("environment", cfg.Environment),
		logger.Component("main"),
	)
	return httpserver.New(cfg.HTTP, log).Run(ctx, r)
}

// buildBilling wires the billing service for the configured provider: the
// remote billing function in edge mode, Paddle plus a YAML catalog in
// paddle mode. Usage always comes from the threads service.
func buildBilling(cfg billing.Config, pool *pgxpool.Pool, threadsSvc *threads.Service, log *slog.Logger) (*billing.Service, error) {
	store := billing.NewPGStore(pool)
	usage := func(ctx context.Context, accountID uuid.UUID) (billing.UsageResult, error) {
		u, err := threadsSvc.MonthlyUsage(ctx, accountID)
		if err != nil {
			return billing.UsageResult{}, err
		}
		return billing.UsageResult{Total: u.Total, Runs: u.Runs}, nil
	}

	switch cfg.Provider {
	case "edge":
		if cfg.Edge.FunctionURL == "" || cfg.Edge.ServiceKey == "" {
			return nil, errors.New("edge billing requires BILLING_FUNCTION_URL and BILLING_SERVICE_KEY")
		}
		edge := billing.NewEdgeClient(cfg.Edge)
		return billing.NewService(edge, edge, edge, store,
			billing.WithUsage(usage),
			billing.WithFreePlanID(cfg.FreePlanID),
			billing.WithLogger(log),
		), nil
	case "paddle":
		plans, err := billing.NewStaticSource(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load plan catalog: %w", err)
		}
		provider, err := billing.NewPaddleProvider(cfg.Paddle)
		if err != nil {
			return nil, fmt.Errorf("build paddle provider: %w", err)
		}
		return billing.NewService(plans, billing.NewStoreStatusSource(store), provider, store,
			billing.WithUsage(usage),
			billing.WithFreePlanID(cfg.FreePlanID),
			billing.WithLogger(log),
		), nil
	default:
		return nil, fmt.Errorf("unknown billing provider %q", cfg.Provider)
	}
}

// sweepSandboxes reclaims idle sandboxes on a fixed interval until the
// context is canceled.
func sweepSandboxes(ctx context.Context, svc *sandbox.Service, every, maxIdle time.Duration, log *slog.Logger) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := svc.CleanupInactive(ctx, maxIdle)
			if err != nil {
				log.ErrorContext(ctx, "sandbox cleanup sweep", logger.Error(err), logger.Component("main"))
				continue
			}
			if reclaimed > 0 {
				log.InfoContext(ctx, "sandbox cleanup sweep", slog.Int("reclaimed", reclaimed), logger.Component("main"))
			}
		}
	}
}
