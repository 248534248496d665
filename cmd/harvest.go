package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/api"
	"github.com/newsdesk/ft-harvester/internal/harvest"
	"github.com/newsdesk/ft-harvester/internal/scheduler"
)

func newHarvestCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run the scheduled crawler (and the query API alongside it).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if once {
				run := a.orchestrator.RunOnce(ctx)
				if run.Status == harvest.RunAborted {
					return fmt.Errorf("run aborted: %s", run.AbortReason)
				}
				return nil
			}

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           api.NewServer(a.store, a.orchestrator, requestTimeout(a), a.logger.Named("api")).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				a.logger.Info("api listening", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.logger.Error("api server failed", zap.Error(err))
				}
			}()

			scheduler.New(a.orchestrator, a.cfg.Interval(), a.logger.Named("scheduler")).Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single crawl cycle and exit")
	return cmd
}

func requestTimeout(a *app) time.Duration {
	return time.Duration(a.cfg.Server.RequestTimeout) * time.Second
}
