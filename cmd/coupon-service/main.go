// cmd/coupon-service/main.go
package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"nexus-coupon/internal/pkg/bootstrap"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/pkg/mq"
	"nexus-coupon/internal/pkg/redis"
	"nexus-coupon/internal/pkg/zookeeper"
	"nexus-coupon/internal/service/coupon/application"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/infrastructure"
	"nexus-coupon/internal/service/coupon/infrastructure/adapter"
	"nexus-coupon/internal/service/coupon/infrastructure/rule"
	"nexus-coupon/internal/service/coupon/interfaces"
	"nexus-coupon/internal/service/coupon/port"
)

const serviceName = "coupon-service"

// main 函数是应用的"组装根" (Composition Root)
// 它负责创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel)

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.App.Timezone).Msg("invalid timezone")
	}
	policy := policyFrom(cfg.Coupon)
	if err := policy.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid coupon policy")
	}

	// 1. 存储
	db, err := infrastructure.NewMySQL(infrastructure.MySQLOptions{
		DSN:             cfg.Infra.MySQL.DSN,
		MaxOpenConns:    cfg.Infra.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Infra.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.Infra.MySQL.ConnMaxLifetime,
		AutoMigrate:     cfg.Infra.MySQL.AutoMigrate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}

	var cleanup []func(ctx context.Context) error
	cleanup = append(cleanup, closeDB(db))

	opts := []application.Option{application.WithLocation(loc)}

	// 2. 可选的 Redis 预占闸门
	if cfg.Infra.Redis.Enabled {
		redisClient, err := redis.NewClient(context.Background(), redis.Options{
			Addr:     cfg.Infra.Redis.Addr,
			Password: cfg.Infra.Redis.Password,
			DB:       cfg.Infra.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		cleanup = append(cleanup, func(context.Context) error { return redisClient.Close() })

		gate, err := adapter.NewPromotionGateRedis(redisClient)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize promotion gate")
		}
		opts = append(opts, application.WithPromotionGate(gate))
	}

	// 3. 可选的活动时间窗口
	if cfg.Coupon.Promotion.Window.Enabled {
		window, err := rule.NewCELWindow(cfg.Coupon.Promotion.Window.Expression, loc)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid promotion window")
		}
		opts = append(opts, application.WithPromotionWindow(window))
	}

	// 4. 应用服务
	tracer := otel.Tracer(serviceName)
	coupons := infrastructure.NewGormCouponRepository(db)
	receipts := infrastructure.NewGormReceiptRepository(db)
	lifecycle := application.NewLifecycleService(
		infrastructure.NewGormUnitOfWork(db),
		coupons,
		receipts,
		infrastructure.NewGormPromotionGranter(db),
		domain.NewCodeGenerator(nil),
		policy,
		tracer,
		opts...,
	)
	queries := application.NewQueryService(infrastructure.NewGormReceiptQuery(db), receipts, tracer, nil)

	// 5. 每日促销批次，多副本时通过 ZooKeeper 互斥
	var locker port.Locker = port.LocalLocker{}
	if cfg.Infra.Zookeeper.Enabled {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		cleanup = append(cleanup, func(context.Context) error { conn.Close(); return nil })
		locker = zookeeper.NewLocker(conn)
	}
	batchAt, err := interfaces.ParseTimeOfDay(cfg.Coupon.Promotion.BatchTime)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid promotion batch time")
	}
	scheduler := interfaces.NewPromotionScheduler(lifecycle, locker, batchAt, loc, cfg.Coupon.Promotion.CheckInterval)
	runners := []bootstrap.Runner{scheduler.Run}

	// 6. Kafka 消费者、SAGA 回复与死信队列
	if cfg.Infra.Kafka.Enabled {
		brokers := cfg.Infra.Kafka.Brokers
		topics := topicsFrom(cfg.Infra.Kafka.Topics)

		// 不绑定 Topic 的 writer，由消息自己指定目标主题
		writer := mq.NewKafkaWriter(brokers, "")
		cleanup = append(cleanup, func(context.Context) error { return writer.Close() })

		saga := adapter.NewSagaKafkaPublisher(writer, topics.ReduceStock, topics.RollbackPoint)
		failureHandler := mq.NewFailureHandler(writer)
		handlers := interfaces.NewEventHandlers(lifecycle, saga)

		for topic, handle := range handlers.Routes(topics) {
			reader := mq.NewKafkaReader(brokers, topic, cfg.Infra.Kafka.GroupID)
			runners = append(runners, interfaces.NewConsumerAdapter(topic, reader, handle, failureHandler).Run)

			dltReader := mq.NewKafkaReader(brokers, mq.DLTTopic(topic), cfg.Infra.Kafka.GroupID+"-dlt")
			runners = append(runners, interfaces.NewDLTConsumerAdapter(topic, dltReader).Run)
		}
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewCouponHandler(lifecycle, queries).RegisterRoutes(appCtx.Mux)
		},
		Runners: runners,
		Cleanup: cleanup,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("service exited with error")
	}
}

func closeDB(db *gorm.DB) func(context.Context) error {
	return func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}

func termsFrom(t bootstrap.TermsConfig) domain.CouponTerms {
	return domain.CouponTerms{
		DiscountAmount: t.DiscountAmount,
		MinOrderPrice:  t.MinOrderPrice,
		ValidMonths:    t.ValidMonths,
		ValidDays:      t.ValidDays,
	}
}

func policyFrom(c bootstrap.CouponConfig) domain.IssuePolicy {
	return domain.IssuePolicy{
		Welcome:           termsFrom(c.Welcome),
		Promotion:         termsFrom(c.Promotion.Terms),
		PromotionSupply:   c.Promotion.Supply,
		SubscriptionSmall: termsFrom(c.SubscriptionSmall),
		SubscriptionLarge: termsFrom(c.SubscriptionLarge),
	}
}

func topicsFrom(c bootstrap.TopicsConfig) interfaces.Topics {
	t := interfaces.DefaultTopics()
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&t.IssueWelcome, c.IssueWelcome)
	override(&t.ReduceCoupon, c.ReduceCoupon)
	override(&t.RollbackCoupon, c.RollbackCoupon)
	override(&t.CancelOrderCoupon, c.CancelOrderCoupon)
	override(&t.RecoverCoupon, c.RecoverCoupon)
	override(&t.IssueRegularPayments, c.IssueRegularPayments)
	override(&t.ReduceStock, c.ReduceStock)
	override(&t.RollbackPoint, c.RollbackPoint)
	return t
}

