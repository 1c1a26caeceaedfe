// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // 容器镜像中可能没有时区数据

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "configs/config.yaml"

// Config 是服务的全部配置
type Config struct {
	App    AppConfig    `yaml:"app"`
	Infra  InfraConfig  `yaml:"infra"`
	Coupon CouponConfig `yaml:"coupon"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	Timezone string `yaml:"timezone"` // "每日"促销批次与活动时间窗口使用的时区
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled bool         `yaml:"enabled"`
	Brokers []string     `yaml:"brokers"`
	GroupID string       `yaml:"groupId"`
	Topics  TopicsConfig `yaml:"topics"`
}

// TopicsConfig 为空的字段使用默认主题名
type TopicsConfig struct {
	IssueWelcome         string `yaml:"issueWelcome"`
	ReduceCoupon         string `yaml:"reduceCoupon"`
	RollbackCoupon       string `yaml:"rollbackCoupon"`
	CancelOrderCoupon    string `yaml:"cancelOrderCoupon"`
	RecoverCoupon        string `yaml:"recoverCoupon"`
	IssueRegularPayments string `yaml:"issueRegularPayments"`
	ReduceStock          string `yaml:"reduceStock"`
	RollbackPoint        string `yaml:"rollbackPoint"`
}

type ZookeeperConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// TermsConfig 描述一类优惠券的面额、门槛与有效期
type TermsConfig struct {
	DiscountAmount int64 `yaml:"discountAmount"`
	MinOrderPrice  int64 `yaml:"minOrderPrice"`
	ValidMonths    int   `yaml:"validMonths"`
	ValidDays      int   `yaml:"validDays"`
}

type CouponConfig struct {
	Welcome           TermsConfig     `yaml:"welcome"`
	SubscriptionSmall TermsConfig     `yaml:"subscriptionSmall"`
	SubscriptionLarge TermsConfig     `yaml:"subscriptionLarge"`
	Promotion         PromotionConfig `yaml:"promotion"`
}

type PromotionConfig struct {
	Terms         TermsConfig   `yaml:"terms"`
	Supply        int64         `yaml:"supply"`
	BatchTime     string        `yaml:"batchTime"` // HH:MM
	CheckInterval time.Duration `yaml:"checkInterval"`
	Window        WindowConfig  `yaml:"window"`
}

type WindowConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Expression string `yaml:"expression"` // CEL
}

// Default 返回内置默认配置，配置文件缺失时使用
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "coupon-service", Port: 8080, LogLevel: "info", Timezone: "UTC"},
		Infra: InfraConfig{
			MySQL: MySQLConfig{
				DSN:             "root:root@tcp(localhost:3306)/coupon?charset=utf8mb4&parseTime=True&loc=UTC",
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: 30 * time.Minute,
				AutoMigrate:     true,
			},
			Redis:     RedisConfig{Enabled: true, Addr: "localhost:6379"},
			Kafka:     KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, GroupID: "coupon-service"},
			Zookeeper: ZookeeperConfig{Enabled: false, Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
			Nacos:     NacosConfig{Enabled: false, ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Coupon: CouponConfig{
			Welcome:           TermsConfig{DiscountAmount: 3000, MinOrderPrice: 15000, ValidDays: 30},
			SubscriptionSmall: TermsConfig{DiscountAmount: 1000, MinOrderPrice: 10000, ValidMonths: 1},
			SubscriptionLarge: TermsConfig{DiscountAmount: 5000, MinOrderPrice: 20000, ValidMonths: 1},
			Promotion: PromotionConfig{
				Terms:         TermsConfig{DiscountAmount: 3000, MinOrderPrice: 20000, ValidDays: 7},
				Supply:        100,
				BatchTime:     "17:00",
				CheckInterval: time.Minute,
				Window:        WindowConfig{Enabled: false, Expression: "hour >= 17 && hour < 18"},
			},
		},
	}
}

// Load 在默认配置之上叠加配置文件与环境变量，文件不存在时只使用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := getEnv("MYSQL_DSN", ""); v != "" {
		cfg.Infra.MySQL.DSN = v
	}
	if v := getEnv("REDIS_ADDR", ""); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getEnv("ZOOKEEPER_SERVERS", ""); v != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := getEnv("JAEGER_ENDPOINT", ""); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := getEnv("NACOS_SERVER_ADDRS", ""); v != "" {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v := getEnv("NACOS_NAMESPACE", ""); v != "" {
		cfg.Infra.Nacos.Namespace = v
	}
	if v := getEnv("NACOS_GROUP", ""); v != "" {
		cfg.Infra.Nacos.Group = v
	}
}

var (
	currentMu     sync.RWMutex
	currentConfig = Default()
)

// Init 从 CONFIG_PATH（默认 configs/config.yaml）加载配置并设为当前配置
func Init() (*Config, error) {
	cfg, err := Load(getEnv("CONFIG_PATH", defaultConfigPath))
	if err != nil {
		return nil, err
	}
	currentMu.Lock()
	currentConfig = cfg
	currentMu.Unlock()
	return cfg, nil
}

// GetCurrentConfig 返回当前生效的配置
func GetCurrentConfig() *Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return currentConfig
}

// Location 解析配置的时区，为空时使用 UTC
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// GetOutboundIP 返回本机对外通信所使用的 IP，用于服务注册
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
