package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AntonStoeckl/library-lending-go/docstore/oteladapters"
	"github.com/AntonStoeckl/library-lending-go/lending/config"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/metrics"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
	"github.com/AntonStoeckl/library-lending-go/lending/shell/observable"
)

const shutdownTimeout = 5 * time.Second

// app holds everything a command needs: configuration, logging, observability and the store.
type app struct {
	cfg              config.Config
	logger           *slog.Logger
	contextualLogger *oteladapters.SlogBridgeLogger
	registry         *prometheus.Registry
	metrics          shell.MetricsCollector
	tracing          shell.TracingCollector
	tracerProvider   *sdktrace.TracerProvider
	backend          *config.Backend
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	handler, err := config.NewHandler(cfg.Log, opts.stderr)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:              cfg,
		logger:           slog.New(handler),
		contextualLogger: config.NewContextualLogger(cfg, handler),
		registry:         prometheus.NewRegistry(),
	}

	if err = a.setupObservability(ctx); err != nil {
		return nil, err
	}

	a.backend, err = config.OpenStore(ctx, cfg.Store, config.StoreInstrumentation{
		ContextualLogger: a.contextualLogger,
		Metrics:          a.metrics,
		Tracing:          a.tracing,
	})
	if err != nil {
		a.shutdownTracing()
		return nil, err
	}

	a.logger.Info("store opened", "engine", a.backend.Engine())

	return a, nil
}

func (a *app) setupObservability(ctx context.Context) error {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	switch a.cfg.Observability.Metrics {
	case config.MetricsPrometheus:
		collector, err := metrics.New(a.registry)
		if err != nil {
			return err
		}

		a.metrics = collector

	case config.MetricsOTel:
		a.metrics = oteladapters.NewMetricsCollector(otel.Meter(a.cfg.Observability.ServiceName))
	}

	if !a.cfg.Observability.Tracing {
		return nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(a.cfg.Observability.ServiceName)))
	if err != nil {
		return err
	}

	a.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(a.tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	a.tracing = oteladapters.NewTracingCollector(a.tracerProvider.Tracer(a.cfg.Observability.ServiceName))

	return nil
}

func (a *app) newEngine() (*engine.Engine, error) {
	options := config.EngineOptions(a.cfg.Engine)
	options = append(options, engine.WithContextualLogger(a.contextualLogger))

	if a.metrics != nil {
		options = append(options, engine.WithMetrics(a.metrics))
	}

	return engine.New(a.backend.Store, options...)
}

// newService returns the engine wrapped with operation spans, metrics and logs.
func (a *app) newService() (engine.Service, error) {
	e, err := a.newEngine()
	if err != nil {
		return nil, err
	}

	options := []observable.Option{observable.WithContextualLogging(a.contextualLogger)}
	if a.metrics != nil {
		options = append(options, observable.WithMetrics(a.metrics))
	}
	if a.tracing != nil {
		options = append(options, observable.WithTracing(a.tracing))
	}

	return observable.NewServiceWrapper(e, options...)
}

func (a *app) close() {
	a.backend.Close()
	a.shutdownTracing()
}

func (a *app) shutdownTracing() {
	if a.tracerProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.tracerProvider.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer provider shutdown failed", shell.LogAttrError, err.Error())
	}
}
