package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/engine/repo"
	"github.com/harshithanethi/flare-bets-hub/internal/engine/settlement"
	"github.com/harshithanethi/flare-bets-hub/internal/oracle/closer"
	ohttp "github.com/harshithanethi/flare-bets-hub/internal/oracle/http"
	kpub "github.com/harshithanethi/flare-bets-hub/internal/oracle/producer"
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
	log.Info("starting service", zap.String("service", "oracle-service"), zap.String("env", cfg.Env))

	// Conexão com Postgres (o mesmo banco do motor de apostas)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka writer (topic race_settled)
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceSettled)
	defer settledWriter.Close()

	repository := repo.NewPostgres(pg, repo.Params{
		MinStakeCents: cfg.MinStakeCents,
		MaxStakeCents: cfg.MaxStakeCents,
		FeeBps:        cfg.FeeBps,
		OddsCeiling:   cfg.OddsCeiling,
	})
	coord := &settlement.Coordinator{Log: log, Registry: repository}
	publ := kpub.NewKafkaPublisher(settledWriter)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Loop de fechamento automático: corridas com cutoff vencido viram CLOSED
	autoCloser := &closer.Closer{
		Log:      log,
		Repo:     repository,
		Interval: 5 * time.Second,
		OnClosed: func(raceID string) {
			log.Info("race auto-closed", zap.String("raceId", raceID))
		},
	}
	go autoCloser.Run(ctx)

	// Servidor HTTP administrativo
	api := ohttp.NewServer(log, repository, coord, publ)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutCancel()
		_ = apiSrv.Shutdown(shutCtx)
	}()

	log.Info("oracle-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
