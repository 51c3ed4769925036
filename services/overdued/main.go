package overdued

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peerlend/escrow"
	"peerlend/observability"
	"peerlend/observability/logging"
)

// Main initialises and runs the overdue sweeper daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/overdued/config.yaml", "path to overdued configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PEERLEND_ENV"))
	logging.Setup("overdued", env)

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backend, err := escrow.Dial(cfg.Chain.Endpoint)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}
	defer backend.Close()

	client, err := escrow.NewClient(backend,
		common.HexToAddress(strings.TrimSpace(cfg.Chain.Contract)),
		escrow.WithConfirmations(cfg.Chain.Confirmations))
	if err != nil {
		return fmt.Errorf("init contract client: %w", err)
	}
	signer, err := escrow.NewKeySigner(cfg.Chain.SignerKey)
	if err != nil {
		return fmt.Errorf("load signer key: %w", err)
	}

	watcher := NewWatcher(client, signer, cfg.BatchLimit, cfg.MissStreak,
		WithMetrics(observability.Overdue()))

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Printf("overdued listening on %s", cfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()
	go func() {
		if err := watcher.Run(stopCtx, cfg.SweepInterval.Duration); err != nil && err != context.Canceled {
			errs <- err
		}
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
