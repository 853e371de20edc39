// cmd/discount-service/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"mercato/internal/pkg/bootstrap"
	"mercato/internal/pkg/logger"
	"mercato/internal/pkg/mq"
	pkgredis "mercato/internal/pkg/redis"
	"mercato/internal/service/discount/application"
	"mercato/internal/service/discount/domain/port"
	"mercato/internal/service/discount/infrastructure"
	"mercato/internal/service/discount/infrastructure/adapter"
	"mercato/internal/service/discount/infrastructure/rule"
	"mercato/internal/service/discount/interfaces"
	"mercato/internal/zookeeper"
)

const serviceName = "discount-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	logger.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	// MySQL + GORM
	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}
	repo := infrastructure.NewGormPolicyRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("failed to migrate discount tables: %v", err)
	}

	// Redis：快照缓存 + 原子用量占用
	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	snapshotCache := adapter.NewSnapshotRedisAdapter(redisClient)
	reserver, err := adapter.NewUsageRedisAdapter(redisClient)
	if err != nil {
		log.Fatalf("failed to initialize usage reserver: %v", err)
	}

	// Kafka：折扣应用事件（可通过 feature flag 关闭）
	var (
		publisher   port.UsageEventPublisher
		usageWriter *kafka.Writer
	)
	if cfg.App.FeatureFlags.EnableUsageEvents {
		usageWriter = mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.UsageTopic)
		publisher = adapter.NewUsageKafkaAdapter(usageWriter)
	}

	// ZooKeeper：管理端变更的分布式锁。连不上时降级为无锁，
	// 只影响跨实例互斥，不影响读路径。
	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
	if err != nil {
		log.Printf("WARN: zookeeper unavailable, policy mutations will not be serialized: %v", err)
		zkConn = nil
	}

	// CEL 规则引擎
	ruleEngine, err := rule.NewCELRuleEngine()
	if err != nil {
		log.Fatalf("failed to initialize rule engine: %v", err)
	}

	tracer := otel.Tracer(serviceName)
	clock := port.SystemClock{}

	// 应用服务
	query := application.NewDiscountQueryService(repo, snapshotCache, clock, tracer)
	usage := application.NewUsageRecorder(repo, reserver, publisher, clock, tracer)
	pricing := application.NewPricingService(repo, ruleEngine, usage, clock, tracer)
	admin := application.NewPolicyAdminService(repo, snapshotCache, zkConn, tracer)
	handler := interfaces.NewDiscountHandler(query, pricing, usage, admin)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8090,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			if usageWriter != nil {
				if err := usageWriter.Close(); err != nil {
					log.Printf("Error closing kafka writer: %v", err)
				}
			}
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
			if zkConn != nil {
				zkConn.Close()
			}
		},
	})
}
