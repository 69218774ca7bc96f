package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"mina-core/internal/consensus"
	"mina-core/internal/frontier"
	"mina-core/internal/node"
	"mina-core/internal/p2p"
	"mina-core/internal/producer"
	"mina-core/internal/rpc/httpapi"
	"mina-core/internal/snarkpool"
	"mina-core/internal/snarkverify"
	"mina-core/internal/telemetry"
	"mina-core/internal/types"
	"mina-core/internal/watched"
	"mina-core/pkg/config"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	lv, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	logrus.SetLevel(lv)
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logrus.Fatalf("log file: %v", err)
		}
		logrus.SetOutput(f)
	}

	genesisBlock, err := config.LoadGenesis(cfg.Genesis.File)
	if err != nil {
		logrus.Fatalf("genesis: %v", err)
	}
	genesis := *types.NewBlockWithHash(genesisBlock)
	state := &node.State{
		P2P:       p2p.NewReady(p2p.Config{MaxPeers: cfg.Network.MaxPeers, ChurnInterval: time.Duration(cfg.Network.ChurnIntervalS) * time.Second}),
		Snark:     snarkverify.NewState(),
		SnarkPool: snarkpool.NewState(),
		Frontier:  frontier.NewState(genesis),
		Consensus: consensus.NewState(genesis),
		Producer:  producer.NewState(),
		Watched:   watched.NewState(),
	}

	w, svc, err := buildServices(cfg, state.SnarkPool)
	if err != nil {
		logrus.Fatalf("build services: %v", err)
	}

	store := node.New(state, svc)
	w.cb.store = store
	tel := telemetry.New()

	ctx, cancel := context.WithCancel(context.Background())

	httpSrv := httpapi.New(store)
	mux := http.NewServeMux()
	mux.Handle("/", httpSrv.Router())
	mux.Handle("/metrics", tel.Handler())
	listener := &http.Server{Addr: cfg.RPC.HTTPListenAddr, Handler: mux}

	go func() {
		logrus.WithField("addr", cfg.RPC.HTTPListenAddr).Info("node: rpc listening")
		if err := listener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("node: rpc server stopped")
		}
	}()

	go runLoop(ctx, store, w, tel)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logrus.Info("node: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = listener.Shutdown(shutdownCtx)

	w.verify.Wait()
	_ = w.ledger.Close()
	_ = w.host.Close()
}
