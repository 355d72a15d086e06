package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/harshithanethi/flare-bets-hub/internal/shared/config"
	"github.com/harshithanethi/flare-bets-hub/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	engineURL := os.Getenv("ENGINE_URL")
	if engineURL == "" {
		engineURL = "http://localhost:8080"
	}
	walletURL := os.Getenv("WALLET_URL")
	if walletURL == "" {
		walletURL = "http://localhost:8082"
	}
	oracleURL := os.Getenv("ORACLE_URL")
	if oracleURL == "" {
		oracleURL = "http://localhost:8084"
	}
	engine := rp(engineURL)
	wallet := rp(walletURL)
	oracle := rp(oracleURL)

	mux := http.NewServeMux()

	// corridas, apostas, odds e WS (ex.: /api/engine/* -> engine-service)
	mux.Handle("/api/engine/", http.StripPrefix("/api/engine", engine))

	// wallet (ex.: /api/wallet/* -> wallet-service)
	mux.Handle("/api/wallet/", http.StripPrefix("/api/wallet", wallet))

	// rotas administrativas do oráculo (ex.: /api/oracle/* -> oracle-service)
	mux.Handle("/api/oracle/", http.StripPrefix("/api/oracle", oracle))

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Oracle-Key")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
