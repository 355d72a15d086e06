package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	ecache "github.com/harshithanethi/flare-bets-hub/internal/engine/cache"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/oddsworker"
	"github.com/harshithanethi/flare-bets-hub/internal/oddsworker/pubsub"
	sharedcache "github.com/harshithanethi/flare-bets-hub/internal/shared/cache"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/config"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/db"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/logger"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Configura o consumer Kafka (consumer group odds-worker)
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  "odds-worker",
		Topic:    cfg.TopicBetPlaced,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_worker_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_worker_cache_sets_total", Help: "sets no cache"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_worker_broadcasts_total", Help: "broadcasts pub/sub"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, broadcast, errorsBy)

	repository := repo.NewPostgres(pg, repo.Params{
		MinStakeCents: cfg.MinStakeCents,
		MaxStakeCents: cfg.MaxStakeCents,
		FeeBps:        cfg.FeeBps,
		OddsCeiling:   cfg.OddsCeiling,
	})

	proc := &oddsworker.Processor{
		Log:         log,
		Reader:      reader,
		Repo:        repository,
		Cache:       ecache.New(redisClient),
		Broadcast:   pubsub.NewRedisBroadcaster(redisClient),
		Params:      oddsworker.Params{FeeBps: cfg.FeeBps, OddsCeiling: cfg.OddsCeiling},
		OnConsumed:  func() { consumed.Inc() },
		OnCached:    func() { cached.Inc() },
		OnBroadcast: func() { broadcast.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("odds-worker started", zap.String("consume", cfg.TopicBetPlaced))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("odds-worker stopped")
}
