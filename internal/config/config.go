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

// 支持的存储驱动
const (
	DriverFilesystem = "filesystem"
	DriverBolt       = "bolt"
	DriverRedis      = "redis"
	DriverPostgres   = "postgres"
	DriverMySQL      = "mysql"
	DriverPgx        = "pgx"
	DriverMemory     = "memory"
)

// Drivers 全部可用的存储驱动
var Drivers = []string{DriverFilesystem, DriverBolt, DriverRedis, DriverPostgres, DriverMySQL, DriverPgx, DriverMemory}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 彩色控制台输出
	File        string // 日志文件路径，留空只输出到标准输出
	MaxSize     int    // 单个日志文件最大 MB
	MaxBackups  int    // 保留的旧文件数量
	MaxAge      int    // 保留天数
	Compress    bool   // 是否压缩旧文件
}

// StorageConfig 定义玩家数据段的持久化方式
type StorageConfig struct {
	Driver      string // filesystem | bolt | redis | postgres | mysql | pgx | memory
	Path        string // filesystem 驱动的目录，每名玩家一个 <uuid>.yml
	BoltPath    string // bolt 驱动的数据库文件
	RedisPrefix string // redis 驱动的键前缀
}

// DatabaseConfig 定义数据库连接配置（postgres、mysql、pgx 驱动使用）
type DatabaseConfig struct {
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 连接配置
type RedisConfig struct {
	Address  string // 格式 "host:port"，默认 "localhost:6379"
	Password string // 留空表示无密码
	DB       int    // 数据库编号，默认 0
}

// DirectoryConfig 定义目录服务（已知玩家与显示名称）
type DirectoryConfig struct {
	File    string        // 玩家目录 YAML 文件
	NameTTL time.Duration // 显示名称缓存时间
}

// RecordsConfig 定义记录缓存的保存策略
type RecordsConfig struct {
	SaveInterval    time.Duration // 定时全量保存间隔，0 表示只在退出时保存
	SaveConcurrency int           // 全量保存时的并发写入数
	Watch           bool          // 监听数据文件的手工修改（仅 filesystem 驱动）
}

// MailConfig 定义玩家邮件发送限制
type MailConfig struct {
	RatePerMinute float64 // 每名发送者每分钟可发送的邮件数
	Burst         int     // 突发上限
}

// OpsConfig 定义运维 HTTP 端点
type OpsConfig struct {
	Enabled     bool          // 是否启动运维端点
	Addr        string        // 监听地址，默认 ":9090"
	CORSOrigins []string      // 允许的来源列表
	TokenSecret string        // 运维令牌签名密钥，留空时关闭需要令牌的端点
	TokenIssuer string        // 令牌签发者
	TokenTTL    time.Duration // 令牌有效期
	Operators   []string      // "名称:bcrypt哈希" 列表，可用密码换取令牌
}

// Config 是系统配置的根结构体
type Config struct {
	Log       LogConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Directory DirectoryConfig
	Records   RecordsConfig
	Mail      MailConfig
	Ops       OpsConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: CFCHAT_
// 例如: CFCHAT_STORAGE_DRIVER, CFCHAT_RECORDS_SAVE_INTERVAL
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("cfchat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("storage.driver", DriverFilesystem)
	v.SetDefault("storage.path", "data/players")
	v.SetDefault("storage.bolt_path", "data/players.db")
	v.SetDefault("storage.redis_prefix", "cfchat:player:")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("directory.file", "data/players.yml")
	v.SetDefault("directory.name_ttl", "5m")
	v.SetDefault("records.save_interval", "5m")
	v.SetDefault("records.save_concurrency", 4)
	v.SetDefault("records.watch", false)
	v.SetDefault("mail.rate_per_minute", 6)
	v.SetDefault("mail.burst", 3)
	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.addr", ":9090")
	v.SetDefault("ops.cors_origins", "*")
	v.SetDefault("ops.token_secret", "")
	v.SetDefault("ops.token_issuer", "cfchat")
	v.SetDefault("ops.token_ttl", "1h")
	v.SetDefault("ops.operators", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	driver := strings.ToLower(strings.TrimSpace(v.GetString("storage.driver")))
	if !isKnownDriver(driver) {
		return nil, fmt.Errorf("invalid storage.driver %q (supported: %s)", driver, strings.Join(Drivers, ", "))
	}

	durations := map[string]time.Duration{}
	for _, key := range []string{"database.conn_max_lifetime", "directory.name_ttl", "records.save_interval", "ops.token_ttl"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = d
	}

	saveConcurrency := v.GetInt("records.save_concurrency")
	if saveConcurrency <= 0 {
		saveConcurrency = 1
	}

	rate := v.GetFloat64("mail.rate_per_minute")
	if rate < 0 {
		return nil, fmt.Errorf("invalid mail.rate_per_minute: must not be negative")
	}
	burst := v.GetInt("mail.burst")
	if burst <= 0 {
		burst = 1
	}

	secret := v.GetString("ops.token_secret")
	if secret != "" && len(secret) < 32 {
		return nil, fmt.Errorf("ops.token_secret must be at least 32 characters long")
	}

	corsOrigins := parseList(v.GetString("ops.cors_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
			MaxSize:     v.GetInt("log.max_size"),
			MaxBackups:  v.GetInt("log.max_backups"),
			MaxAge:      v.GetInt("log.max_age"),
			Compress:    v.GetBool("log.compress"),
		},
		Storage: StorageConfig{
			Driver:      driver,
			Path:        v.GetString("storage.path"),
			BoltPath:    v.GetString("storage.bolt_path"),
			RedisPrefix: v.GetString("storage.redis_prefix"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: durations["database.conn_max_lifetime"],
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Directory: DirectoryConfig{
			File:    v.GetString("directory.file"),
			NameTTL: durations["directory.name_ttl"],
		},
		Records: RecordsConfig{
			SaveInterval:    durations["records.save_interval"],
			SaveConcurrency: saveConcurrency,
			Watch:           v.GetBool("records.watch"),
		},
		Mail: MailConfig{
			RatePerMinute: rate,
			Burst:         burst,
		},
		Ops: OpsConfig{
			Enabled:     v.GetBool("ops.enabled"),
			Addr:        v.GetString("ops.addr"),
			CORSOrigins: corsOrigins,
			TokenSecret: secret,
			TokenIssuer: v.GetString("ops.token_issuer"),
			TokenTTL:    durations["ops.token_ttl"],
			Operators:   parseList(v.GetString("ops.operators")),
		},
	}

	if needsDSN(driver) && cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for storage driver %q", driver)
	}

	return cfg, nil
}

func isKnownDriver(driver string) bool {
	for _, d := range Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

func needsDSN(driver string) bool {
	return driver == DriverPostgres || driver == DriverMySQL || driver == DriverPgx
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
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
