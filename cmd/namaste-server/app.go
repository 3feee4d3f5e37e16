package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/config"
	"github.com/namaste/namaste/internal/domain/aimapping"
	"github.com/namaste/namaste/internal/domain/bundle"
	"github.com/namaste/namaste/internal/domain/conceptmap"
	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/domain/user"
	"github.com/namaste/namaste/internal/platform/ai"
	"github.com/namaste/namaste/internal/platform/auth"
	"github.com/namaste/namaste/internal/platform/cache"
	"github.com/namaste/namaste/internal/platform/circuit"
	"github.com/namaste/namaste/internal/platform/db"
	"github.com/namaste/namaste/internal/platform/fhir"
	"github.com/namaste/namaste/internal/platform/middleware"
	"github.com/namaste/namaste/internal/platform/openapi"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

const serverVersion = "1.0.0"

// app holds every long-lived dependency of the server.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	pool  *pgxpool.Pool
	redis *redis.Client

	verifier   *auth.Verifier
	keys       *auth.JWKSKeyProvider
	terms      *terminology.Service
	engine     *conceptmap.Engine
	aiService  *aimapping.Service
	assembler  *bundle.Assembler
	users      *user.Service
	aiProvider ai.Provider
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: telemetry.New()}

	var (
		concepts  terminology.ConceptRepository
		mappings  conceptmap.MappingStore
		userStore user.Store
	)
	if cfg.UseMemoryStore() {
		concepts = terminology.NewMemoryRepo()
		mappings = conceptmap.NewMemoryStore()
		userStore = user.NewMemoryStore(nil)
		logger.Info().Msg("using in-memory stores")
	} else {
		pool, err := db.NewPool(ctx, db.PoolOptions{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			ApplicationName: "namaste-server",
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		concepts = terminology.NewConceptRepoPG(pool)
		mappings = conceptmap.NewMappingStorePG(pool)
		userStore = user.NewStorePG(pool)
		logger.Info().Msg("connected to database")
	}

	rdb, err := cache.NewRedisClient(ctx, cache.RedisOptions{URL: cfg.RedisURL})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb
	var profileCache cache.Store = cache.NewMemoryStore(cfg.ProfileCacheTTL, nil)
	if rdb != nil {
		profileCache = cache.NewRedisStore(rdb, "namaste:")
		logger.Info().Msg("using redis profile cache")
	}

	discoverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	jwksURL, discovered := auth.ResolveJWKSURL(discoverCtx, nil, cfg.ABHABaseURL, cfg.ABHAJWKSURL)
	cancel()
	logger.Info().Str("jwks_url", jwksURL).Bool("discovered", discovered).Msg("abha key set configured")

	a.keys = auth.NewJWKSKeyProvider(auth.JWKSOptions{
		URL:     jwksURL,
		TTL:     cfg.KeyCacheTTL,
		Metrics: a.metrics,
		Logger:  logger,
	})
	a.verifier = auth.NewVerifier(auth.VerifierConfig{
		Issuer:     cfg.ABHABaseURL,
		Audience:   cfg.ABHAClientID,
		DemoMode:   cfg.ABHADemoMode,
		DemoSecret: cfg.ABHADemoSecret,
	}, a.keys, nil, a.metrics, logger)
	if cfg.ABHADemoMode {
		logger.Warn().Msg("ABHA demo mode is enabled: demo tokens are accepted")
	}
	profiles := auth.NewProfileService(
		auth.NewHTTPProfileFetcher(cfg.ProfileURL(), nil, nil),
		profileCache, cfg.ProfileCacheTTL, nil, a.metrics, logger)

	a.aiProvider = ai.Disabled{}
	if cfg.AIEnabled() {
		breaker := circuit.New("gemini", circuit.WithFailureThreshold(cfg.AIBreakerThreshold))
		gemini, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			URL:     cfg.GeminiAPIURL,
			Model:   cfg.GeminiModel,
			Timeout: cfg.AITimeout,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("configure gemini: %w", err)
		}
		a.aiProvider = ai.NewGuarded(gemini, breaker, cfg.AITimeout, a.metrics, logger)
		logger.Info().Str("model", gemini.Model()).Msg("gemini provider enabled")
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set: AI endpoints serve fallback answers")
	}

	a.terms = terminology.NewService(concepts)
	a.engine = conceptmap.NewEngine(concepts, mappings, cfg.BatchConcurrency, a.metrics, logger)
	mapper := aimapping.NewMapper(a.aiProvider, concepts, a.metrics, logger)
	a.aiService = aimapping.NewService(a.engine, mapper, cfg.MappingConfidenceThreshold, logger)
	a.assembler = bundle.NewAssembler(a.engine, nil, logger)
	a.users = user.NewService(userStore, a.verifier, profiles, nil, logger)

	if cfg.UseMemoryStore() {
		if err := a.seed(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// seed loads the reference concepts and curated mappings.
func (a *app) seed(ctx context.Context) error {
	nc, err := a.terms.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed concepts: %w", err)
	}
	nm, err := a.engine.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed mappings: %w", err)
	}
	a.logger.Info().Int("concepts", nc).Int("mappings", nm).Msg("reference data seeded")
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) healthChecks() []db.Check {
	var checks []db.Check
	if a.pool != nil {
		checks = append(checks, db.Check{Name: "database", Pinger: a.pool, Required: true})
	}
	if a.keys != nil && !a.cfg.ABHADemoMode {
		checks = append(checks, db.Check{Name: "abha", Pinger: a.keys})
	}
	if a.redis != nil {
		rdb := a.redis
		checks = append(checks, db.Check{Name: "redis", Pinger: db.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})})
	}
	return checks
}

func (a *app) baseURL() string {
	return fmt.Sprintf("http://localhost:%s", a.cfg.Port)
}

func (a *app) capabilities() *fhir.CapabilityBuilder {
	b := fhir.NewCapabilityBuilder("NAMASTE Terminology Service", serverVersion, a.baseURL()+"/fhir")
	b.AddResource("CodeSystem", []string{"read"})
	b.AddResource("ConceptMap", []string{"read"}, fhir.OperationCapability{
		Name:       "translate",
		Definition: "http://hl7.org/fhir/OperationDefinition/ConceptMap-translate",
	})
	b.AddResource("Bundle", []string{"create"})
	b.AddOperation(fhir.OperationCapability{
		Name:       "validate",
		Definition: "http://hl7.org/fhir/OperationDefinition/Resource-validate",
	})
	return b
}

// router builds the echo instance with the full middleware chain and every
// route registered.
func (a *app) router() *echo.Echo {
	cfg := a.cfg
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.HTTPErrorHandler(a.logger)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger, "/health", "/metrics"))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "5M"))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))
	}

	e.GET("/health", a.health)
	e.GET("/health/db", db.HealthHandler(a.healthChecks()...))
	e.GET("/metrics", a.metrics.Handler())

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	fhirGroup := e.Group("/fhir", middleware.RateLimit(rateLimitCfg))

	fhirGroup.GET("/metadata", a.capabilities().Handler())

	terminology.NewHandler(a.terms).RegisterRoutes(apiV1, fhirGroup)
	conceptmap.NewHandler(a.engine).RegisterRoutes(apiV1, fhirGroup)
	aimapping.NewHandler(a.aiService).RegisterRoutes(apiV1)
	bundle.NewHandler(a.assembler).RegisterRoutes(fhirGroup)
	fhir.NewValidateHandler().RegisterRoutes(fhirGroup)
	user.NewHandler(a.users, a.verifier).RegisterRoutes(apiV1)

	openapi.NewGenerator(e, "NAMASTE Terminology API", serverVersion, a.baseURL()).RegisterRoutes(e)
	return e
}

func (a *app) health(c echo.Context) error {
	store := config.StorePostgres
	if a.cfg.UseMemoryStore() {
		store = config.StoreMemory
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      serverVersion,
		"store":        store,
		"aiConfigured": a.cfg.AIEnabled(),
		"demoMode":     a.cfg.ABHADemoMode,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
