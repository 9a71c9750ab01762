// Package app es el composition root: toma la config y arma el árbol
// completo de dependencias (storage, firma, limiter, services, controllers,
// router). main sólo carga config, llama New y sirve el Handler.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	rdb "github.com/redis/go-redis/v9"

	adminctrl "github.com/dropDatabas3/authcore/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/authcore/internal/http/controllers/auth"
	devicectrl "github.com/dropDatabas3/authcore/internal/http/controllers/device"
	healthctrl "github.com/dropDatabas3/authcore/internal/http/controllers/health"
	mw "github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/http/router"
	adminsvc "github.com/dropDatabas3/authcore/internal/http/services/admin"
	authsvc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	devicesvc "github.com/dropDatabas3/authcore/internal/http/services/device"
	healthsvc "github.com/dropDatabas3/authcore/internal/http/services/health"

	"github.com/dropDatabas3/authcore/internal/config"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/notify"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	"github.com/dropDatabas3/authcore/internal/rate"
	"github.com/dropDatabas3/authcore/internal/store"
)

// Options ajusta seams que no salen de la config.
type Options struct {
	// Bridge inyecta el intercambio de artefactos del IdP upstream.
	// nil deja /v1/auth/exchange sin montar.
	Bridge authsvc.IdentityBridge

	// Version se reporta en /readyz y en cada línea de log.
	Version string
}

// App es la aplicación armada y lista para servir.
type App struct {
	Handler http.Handler
	Issuer  *jwtx.Issuer

	// Admin lo usa el sweep ticker de main además del endpoint HTTP.
	Admin adminsvc.Service

	conn  store.AdapterConnection
	redis *rdb.Client
}

// New construye la aplicación completa. El caller es dueño de Close.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.L().With(logger.Component("app"))

	// ─── Storage ───
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{
		Name:         cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Storage.Postgres.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage connected", logger.String("adapter", conn.Name()))

	// ─── Llaves de firma ───
	var ks *jwtx.KeySet
	if seed := strings.TrimSpace(cfg.JWT.Ed25519Seed); seed != "" {
		ks, err = jwtx.FromSeedB64(cfg.JWT.KID, seed)
	} else {
		ks, err = jwtx.NewDevEd25519(cfg.JWT.KID)
		log.Warn("using ephemeral signing key; issued tokens will not verify after a restart")
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("signing keys: %w", err)
	}

	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, ks)
	if d, perr := time.ParseDuration(cfg.JWT.AccessTTL); perr == nil {
		issuer.AccessTTL = d
	}
	if d, perr := time.ParseDuration(cfg.JWT.Leeway); perr == nil {
		issuer.Leeway = d
	}
	if err := issuer.SelfCheck(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("signing self-check: %w", err)
	}

	// ─── Hash key de secretos opacos ───
	hashKey, err := hashKeyFromConfig(cfg.Token.HashKey)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	// ─── TTLs ───
	refreshTTL := mustDuration(cfg.JWT.RefreshTTL, 14*24*time.Hour)
	codeTTL := mustDuration(cfg.Device.CodeTTL, 15*time.Minute)
	pollInterval := mustDuration(cfg.Device.PollInterval, 5*time.Second)

	// ─── Rate limiter ───
	var limiter rate.Limiter
	var redisClient *rdb.Client
	var redisPing func(context.Context) error
	if cfg.Rate.Enabled {
		window := mustDuration(cfg.Rate.Window, time.Minute)
		if strings.EqualFold(cfg.Rate.Backend, "redis") {
			redisClient = rdb.NewClient(&rdb.Options{
				Addr:     cfg.Rate.Redis.Addr,
				Password: cfg.Rate.Redis.Password,
				DB:       cfg.Rate.Redis.DB,
			})
			limiter = rate.NewRedisLimiter(redisClient, cfg.Rate.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, window)
			redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, window)
		}
	}

	// ─── Notifier (alertas de reuso) ───
	var notifier *notify.Notifier
	if cfg.SMTP.Host != "" && cfg.SMTP.Username != "" {
		notifier = notify.New(notify.NewSMTPSender(notify.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			FromEmail:          cfg.SMTP.From,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		}))
		log.Info("reuse alerts enabled", logger.String("smtp_host", cfg.SMTP.Host))
	} else {
		notifier = notify.New(nil)
	}

	// ─── Métricas ───
	var poolFunc func() *pgxpool.Pool
	if pg, ok := conn.(interface{ Pool() *pgxpool.Pool }); ok {
		poolFunc = pg.Pool
	}
	metricsHandler, err := metrics.Register(metrics.Config{Pool: poolFunc})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// ─── Services ───
	authServices := authsvc.NewServices(authsvc.Deps{
		Users:      conn.Users(),
		Tokens:     conn.Tokens(),
		RBAC:       conn.RBAC(),
		Issuer:     issuer,
		RefreshTTL: refreshTTL,
		HashKey:    hashKey,
		Notifier:   notifier,
		Bridge:     opts.Bridge,
	})
	deviceServices := devicesvc.NewServices(devicesvc.Deps{
		Devices:         conn.DeviceCodes(),
		Issue:           authServices.Issue,
		HashKey:         hashKey,
		CodeTTL:         codeTTL,
		PollInterval:    pollInterval,
		VerificationURI: cfg.Device.VerificationURI,
	})
	healthServices := healthsvc.NewServices(healthsvc.Deps{
		Issuer:     issuer,
		StoreCheck: conn.Ping,
		RedisCheck: redisPing,
		Version:    opts.Version,
	})
	adminService := adminsvc.NewService(adminsvc.Deps{
		Tokens:  conn.Tokens(),
		Devices: conn.DeviceCodes(),
		Users:   conn.Users(),
	})

	// ─── Controllers + Router ───
	handler := router.New(router.Deps{
		Auth:   authctrl.NewControllers(authServices, issuer),
		Device: devicectrl.NewControllers(deviceServices),
		Admin:  adminctrl.NewController(adminService),
		Health: healthctrl.NewHealthController(healthServices.Health),

		Metrics: metricsHandler,
		Guard: mw.AuthConfig{
			Issuer: issuer,
			Users:  conn.Users(),
			RBAC:   conn.RBAC(),
		},
		AdminKeyPHC:        cfg.Admin.APIKeyHash,
		Limiter:            limiter,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		ExchangeEnabled:    opts.Bridge != nil,
	})

	return &App{
		Handler: handler,
		Issuer:  issuer,
		Admin:   adminService,
		conn:    conn,
		redis:   redisClient,
	}, nil
}

// Close libera conexiones. Llamar una sola vez al apagar.
func (a *App) Close() error {
	var first error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			first = err
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// hashKeyFromConfig decodifica la hash key (base64 estándar, >=32 bytes).
// Vacía genera una efímera de desarrollo.
func hashKeyFromConfig(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		k := make([]byte, 32)
		if _, err := rand.Read(k); err != nil {
			return nil, fmt.Errorf("generate dev hash key: %w", err)
		}
		logger.L().Warn("using ephemeral token hash key; outstanding refresh tokens and device codes will not survive a restart")
		return k, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("token hash key: not valid base64: %w", err)
	}
	if len(b) < 32 {
		return nil, fmt.Errorf("token hash key: need at least 32 bytes, got %d", len(b))
	}
	return b, nil
}

// mustDuration parsea una duración ya validada por config.Load.
func mustDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
