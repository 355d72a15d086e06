package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/payout"
	ppub "github.com/harshithanethi/flare-bets-hub/internal/payout/producer"
	"github.com/harshithanethi/flare-bets-hub/internal/payout/walletclient"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/config"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/db"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/kafka"
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

	// Conexão com Postgres (banco do engine) para efetivar os payouts
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: consome eventos payout_requested
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "payout-worker",
		Topic:    cfg.TopicPayoutRequested,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// Kafka producer: publica payout_completed e, opcionalmente, envia para DLQ
	completedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutCompleted)
	defer completedWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicPayoutRequestedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPayoutRequestedDLQ)
		defer dlqWriter.Close()
	}

	// Cliente HTTP do wallet-service (onde o crédito é idempotente)
	walletURL := os.Getenv("WALLET_URL")
	if walletURL == "" {
		walletURL = "http://localhost:8082"
	}
	wcli := walletclient.New(walletURL)

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_worker_messages_consumed_total", Help: "mensagens consumidas"})
	executed := prometheus.NewCounter(prometheus.CounterOpts{Name: "payout_worker_executed_total", Help: "payouts efetivados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "payout_worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, executed, errorsBy)

	proc := &payout.Processor{
		Log:        log,
		Reader:     reader,
		Wallet:     wcli,
		Store:      payout.NewPostgresStore(pg),
		Publ:       &ppub.KafkaPublisher{CompletedWriter: completedWriter, DLQWriter: dlqWriter},
		OnConsumed: func() { consumed.Inc() },
		OnExecuted: func() { executed.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("payout-worker started",
		zap.String("consume", cfg.TopicPayoutRequested),
		zap.String("publish", cfg.TopicPayoutCompleted),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("payout-worker stopped")
}
