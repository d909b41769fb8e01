package config

import "time"

type AppInfo struct {
	Name    string `config:"name" validate:"required"`
	Version string `config:"version" validate:"required"`
}

type ServerConfig struct {
	Host           string        `config:"host"`
	Port           int           `config:"port" validate:"min=0,max=65535"`
	MetricsPort    int           `config:"metricsPort" validate:"min=0,max=65535"`
	ReadTimeout    time.Duration `config:"readTimeout"`
	WriteTimeout   time.Duration `config:"writeTimeout"`
	IdleTimeout    time.Duration `config:"idleTimeout"`
	RequestTimeout time.Duration `config:"requestTimeout"`
	// DrainTimeout bounds graceful shutdown of each listener; zero waits
	// for in-flight requests indefinitely.
	DrainTimeout time.Duration `config:"drainTimeout"`
	CORS         CORSConfig    `config:"cors"`
}

// CORSConfig applies to the application listener only. An origin of "*"
// allows any origin.
type CORSConfig struct {
	Enabled      bool          `config:"enabled"`
	AllowOrigins []string      `config:"allowOrigins"`
	AllowMethods []string      `config:"allowMethods"`
	AllowHeaders []string      `config:"allowHeaders"`
	MaxAge       time.Duration `config:"maxAge"`
}

type LifecycleConfig struct {
	PrepareTimeout    time.Duration `config:"prepareTimeout"`
	FatalWorkerErrors bool          `config:"fatalWorkerErrors"`
}

type PostgresConfig struct {
	Host              string        `config:"host" validate:"required"`
	Port              int           `config:"port" validate:"required,min=1,max=65535"`
	User              string        `config:"user" validate:"required"`
	Password          string        `config:"password"`
	Database          string        `config:"db" validate:"required"`
	Schema            string        `config:"schema" validate:"required"`
	SSLMode           string        `config:"sslMode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns          int32         `config:"maxConns" validate:"min=0"`
	MinConns          int32         `config:"minConns" validate:"min=0"`
	ConnectTimeout    time.Duration `config:"connectTimeout"`
	MaxConnIdleTime   time.Duration `config:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `config:"healthCheckPeriod"`
}

type AuthConfig struct {
	JWTSecret     string        `config:"jwtSecret" validate:"required,min=16"`
	Issuer        string        `config:"issuer"`
	TokenTTL      time.Duration `config:"tokenTTL" validate:"required"`
	DefaultUserID int64         `config:"defaultUserID" validate:"required"`
}

type DigestJobConfig struct {
	Enabled  bool          `config:"enabled"`
	Interval time.Duration `config:"interval"`
	Limit    int           `config:"limit" validate:"min=0"`
}

type JobsConfig struct {
	Digest DigestJobConfig `config:"digest"`
}

type LoggingConfig struct {
	Level  string `config:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `config:"format" validate:"omitempty,oneof=json text"`
}

type MetricsConfig struct {
	Enabled bool   `config:"enabled"`
	Path    string `config:"path"`
}

type TracingConfig struct {
	Enabled     bool    `config:"enabled"`
	Endpoint    string  `config:"endpoint" validate:"required_if=Enabled true"`
	Insecure    bool    `config:"insecure"`
	SampleRatio float64 `config:"sampleRatio" validate:"min=0,max=1"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `config:"metrics"`
	Tracing TracingConfig `config:"tracing"`
}

type Root struct {
	App           AppInfo             `config:"app"`
	Server        ServerConfig        `config:"server"`
	Lifecycle     LifecycleConfig     `config:"lifecycle"`
	Postgres      PostgresConfig      `config:"postgres"`
	Auth          AuthConfig          `config:"auth"`
	Jobs          JobsConfig          `config:"jobs"`
	Logging       LoggingConfig       `config:"logging"`
	Observability ObservabilityConfig `config:"observability"`
}

// Defaults is the lowest precedence layer; every source overrides it.
func Defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name":    "chatlog",
			"version": "dev",
		},
		"server": map[string]any{
			"host":           "0.0.0.0",
			"port":           8000,
			"metricsPort":    8081,
			"readTimeout":    "15s",
			"writeTimeout":   "15s",
			"idleTimeout":    "60s",
			"requestTimeout": "10s",
			"drainTimeout":   "30s",
			"cors": map[string]any{
				"enabled":      true,
				"allowOrigins": []any{"*"},
				"allowMethods": []any{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
				"allowHeaders": []any{"Content-Type", "Authorization"},
				"maxAge":       "12h",
			},
		},
		"lifecycle": map[string]any{
			"prepareTimeout":    "60s",
			"fatalWorkerErrors": false,
		},
		"postgres": map[string]any{
			"host":              "localhost",
			"port":              5432,
			"user":              "chatlog",
			"db":                "chatlog",
			"schema":            "chatlog",
			"sslMode":           "disable",
			"maxConns":          10,
			"minConns":          1,
			"connectTimeout":    "5s",
			"maxConnIdleTime":   "5m",
			"healthCheckPeriod": "30s",
		},
		"auth": map[string]any{
			"issuer":        "chatlog",
			"tokenTTL":      "300s",
			"defaultUserID": 123,
		},
		"jobs": map[string]any{
			"digest": map[string]any{
				"enabled":  true,
				"interval": "30s",
				"limit":    5,
			},
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"observability": map[string]any{
			"metrics": map[string]any{
				"enabled": true,
				"path":    "/metrics",
			},
			"tracing": map[string]any{
				"enabled":     false,
				"insecure":    true,
				"sampleRatio": 1.0,
			},
		},
	}
}
