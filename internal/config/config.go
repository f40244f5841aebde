package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ttleague/livesync/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	HTTPAddr       string
	LogLevel       logging.Level

	CORSAllowedOrigins []string
	ReadHeaderTimeout  time.Duration
	InternalToken      string

	BroadcastInterval time.Duration
	HeartbeatInterval time.Duration
	ConnBuffer        int
	FanoutWorkers     int

	MatchReapInterval time.Duration
	ConnReapInterval  time.Duration
	MatchMaxIdle      time.Duration
	MatchMaxAge       time.Duration
	ConnMaxIdle       time.Duration

	LockDBPath string
	LockTTL    time.Duration

	DBEnabled bool
	DBURL     string

	WebhookEnabled             bool
	WebhookURL                 string
	WebhookToken               string
	WebhookTimeout             time.Duration
	WebhookCircuitEnabled      bool
	WebhookCircuitFailureCount int
	WebhookCircuitOpenTimeout  time.Duration
	WebhookCircuitProbeBudget  int

	UptraceEnabled bool
	UptraceDSN     string

	PprofEnabled bool
	PprofAddr    string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	broadcastInterval, err := getEnvAsDuration("BROADCAST_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	heartbeatInterval, err := getEnvAsDuration("HEARTBEAT_INTERVAL", 25*time.Second)
	if err != nil {
		return Config{}, err
	}
	connBuffer, err := getEnvAsInt("CONN_BUFFER", 32)
	if err != nil {
		return Config{}, fmt.Errorf("parse CONN_BUFFER: %w", err)
	}
	fanoutWorkers, err := getEnvAsInt("FANOUT_WORKERS", 32)
	if err != nil {
		return Config{}, fmt.Errorf("parse FANOUT_WORKERS: %w", err)
	}

	matchReapInterval, err := getEnvAsDuration("MATCH_REAP_INTERVAL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	connReapInterval, err := getEnvAsDuration("CONN_REAP_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	matchMaxIdle, err := getEnvAsDuration("MATCH_MAX_IDLE", time.Hour)
	if err != nil {
		return Config{}, err
	}
	matchMaxAge, err := getEnvAsDuration("MATCH_MAX_AGE", 12*time.Hour)
	if err != nil {
		return Config{}, err
	}
	connMaxIdle, err := getEnvAsDuration("CONN_MAX_IDLE", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}

	lockTTL, err := getEnvAsDuration("LOCK_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	dbEnabled, err := strconv.ParseBool(getEnv("DB_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_ENABLED: %w", err)
	}
	dbURL := strings.TrimSpace(getEnv("DATABASE_URL", ""))
	if dbEnabled && dbURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	webhookEnabled, err := strconv.ParseBool(getEnv("WEBHOOK_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_ENABLED: %w", err)
	}
	webhookURL := strings.TrimSpace(getEnv("WEBHOOK_URL", ""))
	if webhookEnabled && webhookURL == "" {
		return Config{}, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_ENABLED=true")
	}
	webhookTimeout, err := getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	webhookCircuitEnabled, err := strconv.ParseBool(getEnv("WEBHOOK_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_CIRCUIT_ENABLED: %w", err)
	}
	webhookCircuitFailureCount, err := getEnvAsInt("WEBHOOK_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	webhookCircuitOpenTimeout, err := getEnvAsDuration("WEBHOOK_CIRCUIT_OPEN_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	webhookCircuitProbeBudget, err := getEnvAsInt("WEBHOOK_CIRCUIT_PROBE_BUDGET", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse WEBHOOK_CIRCUIT_PROBE_BUDGET: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", 15*time.Second)
	if err != nil {
		return Config{}, err
	}

	readHeaderTimeout, err := getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "livesync"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		ReadHeaderTimeout:  readHeaderTimeout,
		InternalToken:      strings.TrimSpace(getEnv("INTERNAL_TOKEN", "")),

		BroadcastInterval: broadcastInterval,
		HeartbeatInterval: heartbeatInterval,
		ConnBuffer:        connBuffer,
		FanoutWorkers:     fanoutWorkers,

		MatchReapInterval: matchReapInterval,
		ConnReapInterval:  connReapInterval,
		MatchMaxIdle:      matchMaxIdle,
		MatchMaxAge:       matchMaxAge,
		ConnMaxIdle:       connMaxIdle,

		LockDBPath: getEnv("LOCK_DB_PATH", "livesync-locks.db"),
		LockTTL:    lockTTL,

		DBEnabled: dbEnabled,
		DBURL:     dbURL,

		WebhookEnabled:             webhookEnabled,
		WebhookURL:                 webhookURL,
		WebhookToken:               strings.TrimSpace(getEnv("WEBHOOK_TOKEN", "")),
		WebhookTimeout:             webhookTimeout,
		WebhookCircuitEnabled:      webhookCircuitEnabled,
		WebhookCircuitFailureCount: webhookCircuitFailureCount,
		WebhookCircuitOpenTimeout:  webhookCircuitOpenTimeout,
		WebhookCircuitProbeBudget:  webhookCircuitProbeBudget,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PprofEnabled: pprofEnabled,
		PprofAddr:    getEnv("PPROF_ADDR", ":6060"),

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     getEnv("PYROSCOPE_SERVER_ADDRESS", ""),
		PyroscopeAppName:           getEnv("PYROSCOPE_APP_NAME", "livesync"),
		PyroscopeAuthToken:         getEnv("PYROSCOPE_AUTH_TOKEN", ""),
		PyroscopeBasicAuthUser:     getEnv("PYROSCOPE_BASIC_AUTH_USER", ""),
		PyroscopeBasicAuthPassword: getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}
