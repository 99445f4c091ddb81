package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending/config"
	"github.com/AntonStoeckl/library-lending-go/lending/httpapi"
	"github.com/AntonStoeckl/library-lending-go/lending/intent"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	readHeaderTimeout = 10 * time.Second

	logAttrAddr     = "addr"
	logAttrPosition = "position"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var seedFile string
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lending HTTP API",
		Long: `Serve the lending HTTP API until SIGINT or SIGTERM.

With --seed the store is filled with the sample library (or --seed-file) before serving,
which is how the memory engine gets its data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if seed || seedFile != "" {
				if _, err = a.seed(cmd.Context(), seedFile); err != nil {
					return err
				}
			}

			handler, err := a.newHTTPHandler()
			if err != nil {
				return err
			}

			return a.serve(cmd.Context(), handler)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "seed the sample library before serving")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "seed this YAML fixture file before serving")

	return cmd
}

// newHTTPHandler wires engine, intent router and HTTP API.
func (a *app) newHTTPHandler() (http.Handler, error) {
	service, err := a.newService()
	if err != nil {
		return nil, err
	}

	classifier, err := config.NewClassifier(a.cfg.Intent, func(ctx context.Context, position int, err error) {
		a.contextualLogger.WarnContext(ctx, intent.LogMsgClassifierFailed,
			logAttrPosition, position,
			shell.LogAttrError, err.Error(),
		)
	})
	if err != nil {
		return nil, err
	}

	router, err := intent.NewRouter(service, classifier, intent.WithContextualLogger(a.contextualLogger))
	if err != nil {
		return nil, err
	}

	api, err := httpapi.New(service, router,
		httpapi.WithRequestTimeout(a.cfg.HTTP.RequestTimeout),
		httpapi.WithPrometheus(a.registry, a.registry),
		httpapi.WithContextualLogger(a.contextualLogger),
	)
	if err != nil {
		return nil, err
	}

	return api.Handler(), nil
}

func (a *app) serve(ctx context.Context, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("lending service listening", logAttrAddr, a.cfg.HTTP.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err

	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
