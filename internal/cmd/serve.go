package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/zaqqye/defense_backend_v1/internal/database"
	"github.com/zaqqye/defense_backend_v1/internal/logutils"
	"github.com/zaqqye/defense_backend_v1/internal/routes"
	"github.com/zaqqye/defense_backend_v1/internal/submission"
	"github.com/zaqqye/defense_backend_v1/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run(ctx)

	svc := submission.NewService(db, cfg.SubmissionTimeout, hub)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	routes.Register(r, db, cfg, svc, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logutils.Log.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logutils.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SubmissionTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
