package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/receipt-matcher/internal/model"
)

var servePort int

// matchRunner is the slice of the matcher the webhook needs.
type matchRunner interface {
	Run(ctx context.Context, documentID string, persist bool) ([]model.MatchDecision, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for receipt processing requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, st, err := initMatcher(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, m),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP routes. Webhook processing runs detached from
// the request on baseCtx, so a client disconnect never cancels a match run.
func newRouter(baseCtx context.Context, m matchRunner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/process-receipts", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			DocupandaID string `json:"docupanda_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.DocupandaID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "docupanda_id is required"})
			return
		}

		go func() {
			decisions, err := m.Run(baseCtx, body.DocupandaID, true)
			if err != nil {
				zap.L().Error("webhook match run failed",
					zap.String("docupanda_id", body.DocupandaID),
					zap.Error(err),
				)
				return
			}
			summary := model.Summarize(decisions)
			zap.L().Info("webhook match run complete",
				zap.String("docupanda_id", body.DocupandaID),
				zap.Int("total", summary.Total),
				zap.Int("matched", summary.Matched),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":       "accepted",
			"docupanda_id": body.DocupandaID,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
