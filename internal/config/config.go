package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LegacyAdminKey 旧版本在未配置时使用的默认管理密钥，已禁止使用
const LegacyAdminKey = "changeme"

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host           string        // 监听地址，默认 "0.0.0.0"
	Port           int           // 监听端口，默认 4000
	RequestTimeout time.Duration // 单个 API 请求的处理期限，默认 10 秒
	TrustedProxies []string      // 信任的反向代理地址，用于解析客户端 IP
}

// AdminConfig 定义管理接口的共享密钥
type AdminConfig struct {
	Key string // 通过 x-admin-key 请求头比对，为空时所有管理接口返回 500
}

// 存储驱动
const (
	DriverMongo  = "mongo"
	DriverSQL    = "sql"
	DriverMemory = "memory"
)

// StorageConfig 选择投稿数据的存储后端
type StorageConfig struct {
	Driver string // "mongo"（默认）、"sql" 或 "memory"
}

// MongoConfig 定义文档数据库连接配置
type MongoConfig struct {
	URI            string        // 连接字符串，为空时存储调用均返回连接错误
	Database       string        // 数据库名，默认 "portfolioDB"
	Collection     string        // 集合名，默认 "submissions"
	ConnectTimeout time.Duration // 连接与服务器选择超时
}

// DatabaseConfig 定义 SQL 数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string // 数据库类型: "mysql" 或 "postgres"
	DSN             string // 数据库连接字符串
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// SiteConfig 定义静态站点与主机名规范化配置
type SiteConfig struct {
	CanonicalHost string // 规范主机名，非本地请求会被 301 重定向到该主机
	StaticDir     string // 前端构建产物目录，默认 "dist"
	ForceHTTPS    bool   // 非本地的 http 请求重定向到 https
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，为空时只输出到标准输出
}

// RedisConfig 定义 Redis 服务配置，Address 为空表示不启用
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RateLimitConfig 定义联系表单的限流参数
type RateLimitConfig struct {
	ContactPerMinute int // 每个客户端 IP 每分钟最多提交次数，0 表示不限流
}

// NotifyConfig 定义新投稿邮件通知配置，SMTPAddr 为空表示不启用
type NotifyConfig struct {
	SMTPAddr string   // SMTP 服务地址，格式 "host:port"
	Username string   // SMTP 认证用户名，留空表示不认证
	Password string   // SMTP 认证密码
	From     string   // 发件人地址
	To       []string // 收件人列表
	Workers  int      // 发送协程数量
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	Admin     AdminConfig
	Storage   StorageConfig
	Mongo     MongoConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Site      SiteConfig
	Log       LogConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
}

// legacyEnv 旧部署使用的无前缀环境变量，作为带前缀变量的后备
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"admin.key":            "ADMIN_KEY",
	"mongo.uri":            "MONGO_URI",
	"mongo.database":       "MONGO_DB",
	"cors.allowed_origins": "CORS_ORIGIN",
	"site.canonical_host":  "CANONICAL_HOST",
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 带前缀的系统环境变量，例如 PORTFOLIO_ADMIN_KEY
//  2. 旧版无前缀环境变量，例如 ADMIN_KEY、MONGO_URI
//  3. .env 文件（如果存在）
//  4. 默认值
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("portfolio")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "PORTFOLIO_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.trusted_proxies", "")
	v.SetDefault("admin.key", "")
	v.SetDefault("storage.driver", DriverMongo)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "portfolioDB")
	v.SetDefault("mongo.collection", "submissions")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("site.canonical_host", "")
	v.SetDefault("site.static_dir", "dist")
	v.SetDefault("site.force_https", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rate_limit.contact_per_minute", 5)
	v.SetDefault("notify.smtp_addr", "")
	v.SetDefault("notify.username", "")
	v.SetDefault("notify.password", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.to", "")
	v.SetDefault("notify.workers", 2)

	port := v.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid server.port: %d", port)
	}

	requestTimeout, err := time.ParseDuration(v.GetString("server.request_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.request_timeout: %w", err)
	}

	connectTimeout, err := time.ParseDuration(v.GetString("mongo.connect_timeout"))
	if err != nil {
		connectTimeout = 10 * time.Second
	}

	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	adminKey := v.GetString("admin.key")
	// 安全检查：禁止使用旧版默认管理密钥
	if adminKey == LegacyAdminKey {
		return nil, fmt.Errorf("SECURITY ERROR: admin key cannot be the legacy default %q. Please set PORTFOLIO_ADMIN_KEY", LegacyAdminKey)
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("storage.driver")))
	switch driver {
	case DriverMongo, DriverSQL, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported storage.driver: %s (supported: mongo, sql, memory)", driver)
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	// 0 表示关闭联系表单限流
	perMinute := v.GetInt("rate_limit.contact_per_minute")
	if perMinute < 0 {
		return nil, fmt.Errorf("invalid rate_limit.contact_per_minute: %d (must be >= 0)", perMinute)
	}

	workers := v.GetInt("notify.workers")
	if workers <= 0 {
		workers = 1
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           port,
			RequestTimeout: requestTimeout,
			TrustedProxies: parseList(v.GetString("server.trusted_proxies")),
		},
		Admin: AdminConfig{
			Key: adminKey,
		},
		Storage: StorageConfig{
			Driver: driver,
		},
		Mongo: MongoConfig{
			URI:            v.GetString("mongo.uri"),
			Database:       v.GetString("mongo.database"),
			Collection:     v.GetString("mongo.collection"),
			ConnectTimeout: connectTimeout,
		},
		Database: DatabaseConfig{
			Type:            strings.ToLower(v.GetString("database.type")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Site: SiteConfig{
			CanonicalHost: strings.ToLower(strings.TrimSpace(v.GetString("site.canonical_host"))),
			StaticDir:     v.GetString("site.static_dir"),
			ForceHTTPS:    v.GetBool("site.force_https"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			ContactPerMinute: perMinute,
		},
		Notify: NotifyConfig{
			SMTPAddr: v.GetString("notify.smtp_addr"),
			Username: v.GetString("notify.username"),
			Password: v.GetString("notify.password"),
			From:     v.GetString("notify.from"),
			To:       parseList(v.GetString("notify.to")),
			Workers:  workers,
		},
	}

	if cfg.Notify.SMTPAddr != "" && (cfg.Notify.From == "" || len(cfg.Notify.To) == 0) {
		return nil, fmt.Errorf("notify.from and notify.to are required when notify.smtp_addr is set")
	}

	return cfg, nil
}

// Addr 返回 HTTP 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（从 backend/ 子目录运行的情况）
//
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
