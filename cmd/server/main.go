package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"coupon_rush/internal/config"
	"coupon_rush/internal/model"
	"coupon_rush/internal/queue"
	"coupon_rush/internal/router"
	"coupon_rush/internal/seckill"
	"coupon_rush/internal/shop"
	"coupon_rush/internal/voucher"
	"coupon_rush/pkg/cache"
	"coupon_rush/pkg/idgen"
	redisx "coupon_rush/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath+"?_busy_timeout=5000"), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&model.Shop{}, &model.Voucher{}, &model.VoucherOrder{}, &model.OrderEvent{}); err != nil {
		logrus.Fatalf("db migrate: %v", err)
	}

	// 2. Redis 客户端与 Store 抽象
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	store := redisx.NewStore(rdb)

	// 3. 缓存客户端 + 异步重建池
	pool := cache.NewRebuildPool(cfg.RebuildWorkers, cfg.RebuildQueueSize)
	defer pool.Close()
	cacheClient := cache.New(store, pool)

	// 4. 业务服务
	ids := idgen.NewWorker(store)
	shops := shop.NewService(db, cacheClient, cfg.ShopCacheTTL)
	vouchers := voucher.NewService(db, cacheClient, cfg.VoucherCacheTTL)
	streamPub := queue.NewStreamPublisher(rdb, cfg.OrderEventStream)
	seckills := seckill.NewService(db, store, ids, streamPub)

	// 5. 事件管道：Stream → Kafka → 审计表
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go relay.Run(ctx)
	go consumer.Run(ctx)

	r := gin.Default()
	router.Setup(r, rdb, shops, vouchers, seckills, cfg)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		logrus.Fatalf("http server: %v", err)
	}
}
