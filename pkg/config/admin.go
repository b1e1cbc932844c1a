package config

import (
	"strings"
	"time"
)

// AdminConfig holds runtime configuration for the administration service.
type AdminConfig struct {
	Environment        string
	LogLevel           string
	Addr               string
	AdminPort          int
	StoreDSN           string
	MigrationsDir      string
	AutoMigrate        bool
	BasePath           string
	DirPrefix          string
	DirSuffix          string
	TemplatePort       int
	PortMin            int
	PortMax            int
	SharedDirs         []string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	AdminUser          string
	AdminPassword      string
	BankURLs           map[string]string
	PartnerTimeout     time.Duration
	BatchWidth         int
	JobRedisAddr       string
	JobRedisPass       string
	JobRedisDB         int
	JobEncryptionKey   string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	WatchBasePath      bool
	WatchDebounce      time.Duration
	SupervisorEnabled  bool
	DockerHost         string
}

// LoadAdminConfig constructs an AdminConfig from environment variables.
func LoadAdminConfig() AdminConfig {
	return AdminConfig{
		Environment:        GetString("APP_ENV", "development"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		Addr:               GetString("ADMIN_ADDR", ":3000"),
		AdminPort:          GetInt("ADMIN_PORT", 3000),
		StoreDSN:           GetString("STORE_DSN", "file:///var/lib/sistema-admin/dados.json"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", ""),
		AutoMigrate:        GetBool("DB_AUTO_MIGRATE", true),
		BasePath:           GetString("BASE_PATH", "/opt/ambientes"),
		DirPrefix:          GetString("ENV_DIR_PREFIX", "ambiente"),
		DirSuffix:          GetString("ENV_DIR_SUFFIX", "app"),
		TemplatePort:       GetInt("TEMPLATE_PORT", 4000),
		PortMin:            GetInt("PORT_MIN", 4001),
		PortMax:            GetInt("PORT_MAX", 4999),
		SharedDirs:         GetList("SHARED_DIRS", []string{"shared", "utils"}),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 480)) * time.Minute,
		AdminUser:          GetString("ADMIN_USER", "admin"),
		AdminPassword:      GetString("ADMIN_PASSWORD", "admin"),
		BankURLs:           loadBankURLs("alpha", "bravo", "confianca"),
		PartnerTimeout:     time.Duration(GetInt("PARTNER_TIMEOUT_SECONDS", 30)) * time.Second,
		BatchWidth:         GetInt("BATCH_WIDTH", 10),
		JobRedisAddr:       GetString("JOB_STORE_REDIS_ADDR", ""),
		JobRedisPass:       GetString("JOB_STORE_REDIS_PASSWORD", ""),
		JobRedisDB:         GetInt("JOB_STORE_REDIS_DB", 0),
		JobEncryptionKey:   GetString("JOB_STORE_ENCRYPTION_KEY", ""),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		WatchBasePath:      GetBool("WATCH_BASE_PATH", false),
		WatchDebounce:      time.Duration(GetInt("WATCH_DEBOUNCE_MS", 2000)) * time.Millisecond,
		SupervisorEnabled:  GetBool("SUPERVISOR_ENABLED", false),
		DockerHost:         GetString("DOCKER_HOST", "unix:///var/run/docker.sock"),
	}
}

// loadBankURLs reads BANK_<ID>_URL for each integration id.
func loadBankURLs(ids ...string) map[string]string {
	urls := make(map[string]string, len(ids))
	for _, id := range ids {
		value := strings.TrimSpace(GetString("BANK_"+strings.ToUpper(id)+"_URL", ""))
		if value != "" {
			urls[id] = strings.TrimRight(value, "/")
		}
	}
	return urls
}
