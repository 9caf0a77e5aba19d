package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vantage-ai/vantage/internal/metrics"
	"github.com/vantage-ai/vantage/pkg/events"
	"github.com/vantage-ai/vantage/pkg/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analysis requests over HTTP",
	Long: `Serve starts an HTTP server: POST /v1/runs executes a request, and
GET /v1/progress streams action progress events over a websocket.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	broadcaster := events.NewBroadcaster(log.Zerolog())
	defer broadcaster.Close()

	mtr := metrics.New()

	eng, err := newEngine(cfg, log.Zerolog(), broadcaster, mtr)
	if err != nil {
		return err
	}
	defer eng.close()
	eng.bus.OnDrop(mtr.EventsDropped.Inc)

	if err := eng.retention.Start(); err != nil {
		return err
	}
	defer eng.retention.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/runs", handleRuns(eng, mtr))
	mux.Handle("/v1/progress", broadcaster)
	mux.Handle("/metrics", mtr.Handler())
	mux.HandleFunc("/v1/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zl := log.Zerolog()
		zl.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// handleRuns executes one request per POST and returns the aggregate result
func handleRuns(eng *engine, mtr *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req orchestrator.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Prompt == "" {
			http.Error(w, "prompt is required", http.StatusBadRequest)
			return
		}

		started := time.Now()
		result, err := eng.orchestrator.Run(r.Context(), req)
		mtr.ObserveRun(result.Status, started)

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		json.NewEncoder(w).Encode(result)
	}
}
