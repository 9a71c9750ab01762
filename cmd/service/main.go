package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authcore/internal/app"
	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/observability/logger"

	// Registro de adapters de storage via init()
	_ "github.com/dropDatabas3/authcore/internal/store/adapters/dal"
)

// version se inyecta con -ldflags en el build.
var version = "dev"

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// maskDSN oculta el password de un DSN tipo URL antes de imprimirlo.
func maskDSN(dsn string) string {
	if dsn == "" {
		return "NOT_SET"
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func printConfigSummary(c *config.Config) {
	mask := func(s string) string {
		if s == "" {
			return "NOT_SET"
		}
		return "***masked***"
	}
	fmt.Printf(`CONFIG:
  app.env=%s log.level=%s
  server.addr=%s cors=%v

  storage.driver=%s dsn=%s

  jwt.issuer=%s kid=%s access_ttl=%s refresh_ttl=%s leeway=%s
  jwt.ed25519_seed=%s
  token.hash_key=%s

  device(code_ttl=%s, poll_interval=%s, verification_uri=%s)

  rate(enabled=%t, backend=%s, window=%s, max=%d) redis.addr=%s

  sweep.interval=%s
  admin.api_key_hash=%s

  smtp(host=%s, port=%d, user=%s, from=%s, tls=%s)
`,
		c.App.Env, c.Log.Level,
		c.Server.Addr, c.Server.CORSAllowedOrigins,
		c.Storage.Driver, maskDSN(c.Storage.DSN),
		c.JWT.Issuer, c.JWT.KID, c.JWT.AccessTTL, c.JWT.RefreshTTL, c.JWT.Leeway,
		mask(c.JWT.Ed25519Seed),
		mask(c.Token.HashKey),
		c.Device.CodeTTL, c.Device.PollInterval, c.Device.VerificationURI,
		c.Rate.Enabled, c.Rate.Backend, c.Rate.Window, c.Rate.MaxRequests, c.Rate.Redis.Addr,
		c.Sweep.Interval,
		mask(c.Admin.APIKeyHash),
		c.SMTP.Host, c.SMTP.Port, c.SMTP.Username, c.SMTP.From, c.SMTP.TLS,
	)
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH; sin archivo arranca con defaults+env)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva y termina")
	)
	flag.Parse()

	if fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			stdlog.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" && fileExists("configs/config.yaml") {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}
	if *flagPrint {
		printConfigSummary(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "authcore",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Version: version})
	if err != nil {
		log.Fatal("wiring failed", logger.Err(err))
	}
	defer func() { _ = a.Close() }()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	// Sweep interno. El endpoint /v1/admin/sweep queda disponible igual
	// para correrlo desde afuera (cron, authcorectl).
	g.Go(func() error {
		interval, _ := time.ParseDuration(cfg.Sweep.Interval)
		if interval <= 0 {
			log.Info("internal sweep disabled")
			<-gctx.Done()
			return nil
		}
		log.Info("internal sweep enabled", logger.String("interval", interval.String()))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := a.Admin.Sweep(sctx); err != nil {
					log.Warn("scheduled sweep failed", logger.Err(err))
				}
				cancel()
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server failed", logger.Err(err))
	}
	log.Info("server stopped")
}
