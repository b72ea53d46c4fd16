package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（下单提交后原子入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 秒杀接口限流
	BuyRateLimit  int
	BuyRateWindow time.Duration

	// 缓存策略：店铺走逻辑过期，优惠券详情走普通 TTL
	ShopCacheTTL    time.Duration
	VoucherCacheTTL time.Duration

	// 逻辑过期异步重建协程池
	RebuildWorkers   int
	RebuildQueueSize int

	// 预热/管理接口的简单管理员令牌（demo 级别保护）
	AdminToken string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "coupon_rush.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "coupon-rush-orders"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "coupon-rush-order-consumer"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "coupon_rush:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "coupon-rush-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "coupon-rush-relay-1"),
		BuyRateLimit:       1000,
		BuyRateWindow:      time.Second,
		ShopCacheTTL:       30 * time.Minute,
		VoucherCacheTTL:    10 * time.Minute,
		RebuildWorkers:     10,
		RebuildQueueSize:   64,
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("BUY_RATE_LIMIT", cfg.BuyRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BUY_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("BUY_RATE_LIMIT must be > 0")
	}
	cfg.BuyRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("BUY_RATE_WINDOW_SEC", int(cfg.BuyRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BUY_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("BUY_RATE_WINDOW_SEC must be > 0")
	}
	cfg.BuyRateWindow = time.Duration(rateWindowSec) * time.Second

	shopTTLMin, err := getEnvInt("SHOP_CACHE_TTL_MIN", int(cfg.ShopCacheTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SHOP_CACHE_TTL_MIN: %w", err)
	}
	if shopTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("SHOP_CACHE_TTL_MIN must be > 0")
	}
	cfg.ShopCacheTTL = time.Duration(shopTTLMin) * time.Minute

	voucherTTLMin, err := getEnvInt("VOUCHER_CACHE_TTL_MIN", int(cfg.VoucherCacheTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid VOUCHER_CACHE_TTL_MIN: %w", err)
	}
	if voucherTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("VOUCHER_CACHE_TTL_MIN must be > 0")
	}
	cfg.VoucherCacheTTL = time.Duration(voucherTTLMin) * time.Minute

	workers, err := getEnvInt("REBUILD_WORKERS", cfg.RebuildWorkers)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REBUILD_WORKERS: %w", err)
	}
	if workers <= 0 {
		return AppConfig{}, fmt.Errorf("REBUILD_WORKERS must be > 0")
	}
	cfg.RebuildWorkers = workers

	queueSize, err := getEnvInt("REBUILD_QUEUE_SIZE", cfg.RebuildQueueSize)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REBUILD_QUEUE_SIZE: %w", err)
	}
	if queueSize <= 0 {
		return AppConfig{}, fmt.Errorf("REBUILD_QUEUE_SIZE must be > 0")
	}
	cfg.RebuildQueueSize = queueSize

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
