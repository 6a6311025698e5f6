package config

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Email        EmailConfig        `mapstructure:"email"`
	Log          LogConfig          `mapstructure:"log"`
	Cache        CacheConfig        `mapstructure:"cache"`
	QuickBooks   QuickBooksConfig   `mapstructure:"quickbooks"`
	Grok         GrokConfig         `mapstructure:"grok"`
	Export       ExportConfig       `mapstructure:"export"`
	Municipality MunicipalityConfig `mapstructure:"municipality"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql / postgres / sqlite
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	Charset      string `mapstructure:"charset"`
	SSLMode      string `mapstructure:"sslmode"`
	Path         string `mapstructure:"path"` // sqlite 文件路径
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	ExpireHours int           `mapstructure:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / console
	Output string `mapstructure:"output"` // stdout / stderr / 文件路径
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Driver            string `mapstructure:"driver"` // memory / redis
	DefaultTTLMinutes int    `mapstructure:"default_ttl_minutes"`
	RedisAddr         string `mapstructure:"redis_addr"`
	RedisPassword     string `mapstructure:"redis_password"`
	RedisDB           int    `mapstructure:"redis_db"`
}

// DefaultTTL 缓存默认过期时间
func (c CacheConfig) DefaultTTL() time.Duration {
	if c.DefaultTTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

// QuickBooksConfig QuickBooks Online 配置
type QuickBooksConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	TokenURL       string `mapstructure:"token_url"`
	RealmID        string `mapstructure:"realm_id"`
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	AccessToken    string `mapstructure:"access_token"`
	RefreshToken   string `mapstructure:"refresh_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// GrokConfig xAI Grok 配置
type GrokConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	BaseURL                 string `mapstructure:"base_url"`
	APIKey                  string `mapstructure:"api_key"`
	Model                   string `mapstructure:"model"`
	TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
	MaxRetries              int    `mapstructure:"max_retries"`
	CacheTTLMinutes         int    `mapstructure:"cache_ttl_minutes"`
	BreakerFailureThreshold int    `mapstructure:"breaker_failure_threshold"`
	BreakerOpenSeconds      int    `mapstructure:"breaker_open_seconds"`
}

// ExportConfig 导出与归档配置
type ExportConfig struct {
	PDFEnabled      bool   `mapstructure:"pdf_enabled"`
	ChromeRemoteURL string `mapstructure:"chrome_remote_url"`
	Archive         string `mapstructure:"archive"` // none / local / s3
	LocalDir        string `mapstructure:"local_dir"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
	S3Region        string `mapstructure:"s3_region"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	S3AccessKey     string `mapstructure:"s3_access_key"`
	S3SecretKey     string `mapstructure:"s3_secret_key"`
	S3UsePathStyle  bool   `mapstructure:"s3_use_path_style"`
}

// MunicipalityConfig 市政单位信息
type MunicipalityConfig struct {
	Name                 string `mapstructure:"name"`
	FiscalYearStartMonth int    `mapstructure:"fiscal_year_start_month"`
}

// FiscalYearRange 财年起止日期，财年以结束所在的日历年命名
// 例如起始月为 7 时，FY2025 为 2024-07-01 至 2025-06-30
func (m MunicipalityConfig) FiscalYearRange(fiscalYear int) (time.Time, time.Time) {
	month := m.FiscalYearStartMonth
	if month < 1 || month > 12 {
		month = 1
	}
	year := fiscalYear
	if month > 1 {
		year--
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(1, 0, 0).Add(-time.Second)
	return start, end
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("警告: 无法读取指定配置文件 %s: %v", configPath, err)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/wileywidget")
		externalViper.AddConfigPath("$HOME/.wileywidget")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("警告: 合并外部配置失败: %v", err)
			}
		}
	}

	// 3. .env 文件（可选），随后环境变量覆盖
	_ = godotenv.Load()
	v.SetEnvPrefix("WILEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// applyDefaults 补全缺省值
func (cfg *Config) applyDefaults() {
	if cfg.JWT.ExpireHours <= 0 {
		cfg.JWT.ExpireHours = 24
	}
	cfg.JWT.ExpireTime = time.Duration(cfg.JWT.ExpireHours) * time.Hour

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Grok.MaxRetries < 0 {
		cfg.Grok.MaxRetries = 0
	}
	if cfg.Grok.BreakerFailureThreshold <= 0 {
		cfg.Grok.BreakerFailureThreshold = 5
	}
	if cfg.Grok.BreakerOpenSeconds <= 0 {
		cfg.Grok.BreakerOpenSeconds = 30
	}
	if cfg.Municipality.FiscalYearStartMonth < 1 || cfg.Municipality.FiscalYearStartMonth > 12 {
		cfg.Municipality.FiscalYearStartMonth = 7
	}
}

// MustLoadConfig 加载配置，失败则 panic
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}
	return cfg
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("配置未初始化，请先调用 LoadConfig")
	}
	return GlobalConfig
}

// Summary 返回隐藏敏感信息后的配置摘要
func (cfg *Config) Summary() map[string]string {
	dbTarget := fmt.Sprintf("%s@%s:%s/%s", cfg.Database.Username, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	if cfg.Database.Driver == "sqlite" {
		dbTarget = cfg.Database.Path
	}
	return map[string]string{
		"server":     fmt.Sprintf("%s (模式: %s)", cfg.Server.Port, cfg.Server.Mode),
		"database":   cfg.Database.Driver + " " + dbTarget,
		"cache":      cfg.Cache.Driver,
		"email":      fmt.Sprintf("%v", cfg.Email.Enabled),
		"quickbooks": fmt.Sprintf("%v", cfg.QuickBooks.Enabled),
		"grok":       fmt.Sprintf("%v", cfg.Grok.Enabled),
		"archive":    cfg.Export.Archive,
	}
}

// PrintConfig 打印当前配置（隐藏敏感信息）
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	log.Printf("当前配置:")
	s := GlobalConfig.Summary()
	for _, k := range []string{"server", "database", "cache", "email", "quickbooks", "grok", "archive"} {
		log.Printf("  %s: %s", k, s[k])
	}
}
