package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns int `yaml:"max_open_conns"`
			MaxIdleConns int `yaml:"max_idle_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// KID identifica la clave activa en el JWKS.
		KID string `yaml:"kid"`
		// Ed25519Seed: semilla de 32 bytes en base64. Vacía => clave efímera
		// de desarrollo (se regenera en cada arranque).
		Ed25519Seed string `yaml:"ed25519_seed"`
		AccessTTL   string `yaml:"access_ttl"`  // default 15m
		RefreshTTL  string `yaml:"refresh_ttl"` // default 336h (14d)
		Leeway      string `yaml:"leeway"`      // default 30s
	} `yaml:"jwt"`

	Token struct {
		// HashKey: clave del digest HMAC con que se persisten los secretos
		// opacos (refresh y device codes). Nunca va a la base. Vacía =>
		// clave efímera de desarrollo: los tokens emitidos no sobreviven
		// un reinicio.
		HashKey string `yaml:"hash_key"`
	} `yaml:"token"`

	Device struct {
		CodeTTL         string `yaml:"code_ttl"`         // default 15m
		PollInterval    string `yaml:"poll_interval"`    // default 5s
		VerificationURI string `yaml:"verification_uri"` // default <issuer>/activate
	} `yaml:"device"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Backend     string `yaml:"backend"`      // memory | redis
		Window      string `yaml:"window"`       // default 1m
		MaxRequests int    `yaml:"max_requests"` // default 60
		Redis       struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate"`

	Sweep struct {
		// Interval del barrido de filas expiradas. "0" deshabilita el
		// ticker interno (queda el endpoint admin).
		Interval string `yaml:"interval"` // default 1h
	} `yaml:"sweep"`

	Admin struct {
		// APIKeyHash: hash argon2id (formato PHC) de la API key de
		// operador. Vacío => endpoints admin deshabilitados.
		APIKeyHash string `yaml:"api_key_hash"`
	} `yaml:"admin"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`
}

func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.KID == "" {
		c.JWT.KID = "authcore-1"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "336h" // 14d
	}
	if c.JWT.Leeway == "" {
		c.JWT.Leeway = "30s"
	}
	if c.Device.CodeTTL == "" {
		c.Device.CodeTTL = "15m"
	}
	if c.Device.PollInterval == "" {
		c.Device.PollInterval = "5s"
	}
	if c.Device.VerificationURI == "" {
		c.Device.VerificationURI = strings.TrimRight(c.JWT.Issuer, "/") + "/activate"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Sweep.Interval == "" {
		c.Sweep.Interval = "1h"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}

	// validate string durations
	for _, d := range []string{
		c.JWT.AccessTTL, c.JWT.RefreshTTL, c.JWT.Leeway,
		c.Device.CodeTTL, c.Device.PollInterval,
		c.Rate.Window, c.Sweep.Interval,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: bad duration %q: %w", d, err)
		}
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_KID"); ok {
		c.JWT.KID = v
	}
	if v, ok := getEnvStr("JWT_ED25519_SEED"); ok {
		c.JWT.Ed25519Seed = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("JWT_LEEWAY"); ok {
		c.JWT.Leeway = v
	}

	// TOKEN
	if v, ok := getEnvStr("TOKEN_HASH_KEY"); ok {
		c.Token.HashKey = v
	}

	// DEVICE
	if v, ok := getEnvStr("DEVICE_CODE_TTL"); ok {
		c.Device.CodeTTL = v
	}
	if v, ok := getEnvStr("DEVICE_POLL_INTERVAL"); ok {
		c.Device.PollInterval = v
	}
	if v, ok := getEnvStr("DEVICE_VERIFICATION_URI"); ok {
		c.Device.VerificationURI = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Rate.Redis.Prefix = v
	}

	// SWEEP
	if v, ok := getEnvStr("SWEEP_INTERVAL"); ok {
		c.Sweep.Interval = v
	}

	// ADMIN
	if v, ok := getEnvStr("ADMIN_API_KEY_HASH"); ok {
		c.Admin.APIKeyHash = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}
}

// Validate chequea invariantes que en prod no pueden faltar. En dev se
// permiten claves efímeras para arrancar sin configuración.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage driver postgres requires a DSN")
	}

	if strings.EqualFold(c.App.Env, "prod") {
		if strings.TrimSpace(c.JWT.Ed25519Seed) == "" {
			return fmt.Errorf("config: jwt.ed25519_seed is required in prod")
		}
		if strings.TrimSpace(c.Token.HashKey) == "" {
			return fmt.Errorf("config: token.hash_key is required in prod")
		}
		if c.Storage.Driver == "memory" {
			return fmt.Errorf("config: storage driver memory is not allowed in prod")
		}
	}
	return nil
}

// IsProd reporta si la app corre en modo producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}
