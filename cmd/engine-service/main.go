package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	ecache "github.com/harshithanethi/flare-bets-hub/internal/engine/cache"
	ehttp "github.com/harshithanethi/flare-bets-hub/internal/engine/http"
	kpub "github.com/harshithanethi/flare-bets-hub/internal/engine/producer"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/ws"
	sharedcache "github.com/harshithanethi/flare-bets-hub/internal/shared/cache"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/config"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/db"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/kafka"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/logger"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (bet_placed, payout_requested)
	betWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer betWriter.Close()
	payoutWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutRequested)
	defer payoutWriter.Close()

	// deps
	repository := repo.NewPostgres(pg, repo.Params{
		MinStakeCents: cfg.MinStakeCents,
		MaxStakeCents: cfg.MaxStakeCents,
		FeeBps:        cfg.FeeBps,
		OddsCeiling:   cfg.OddsCeiling,
	})
	oddsCache := ecache.New(rdb)
	publ := kpub.NewKafkaPublisher(betWriter, payoutWriter)

	// Hub WebSocket alimentado pelo Pub/Sub do odds-worker
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := ws.NewHub(func(_ *http.Request) bool { return true }) // PoC: CheckOrigin liberado
	ws.StartRedisSubscriber(ctx, rdb, hub)

	// HTTP público
	api := ehttp.NewServer(log, repository, oddsCache, publ, hub, ehttp.OddsParams{
		FeeBps:      cfg.FeeBps,
		OddsCeiling: cfg.OddsCeiling,
	})
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("engine-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
