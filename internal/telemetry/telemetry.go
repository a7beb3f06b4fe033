// Package telemetry wires the gateway's tracing and metrics surface: an
// OpenTelemetry tracer provider (the gateway's handlers and connectors
// start no spans of their own), and a Prometheus registry exposed at
// GET /metrics, following helm's
// pkg/observability provider and its RED-metric naming convention.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func newResource(serviceName, environment string) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("deployment.environment", environment),
	)
}

// Provider bundles the tracer provider and the Prometheus collectors the
// pipeline and evaluator record against.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	reasonCodesTotal *prometheus.CounterVec
	evaluatorLatency prometheus.Histogram
	pipelineLatency  *prometheus.HistogramVec
}

// New builds a Provider. serviceName/environment tag every span's resource
// attributes; sampleRate of 0 disables tracing (NeverSample) without
// touching the metrics side.
func New(serviceName, environment string, sampleRate float64) *Provider {
	var sampler sdktrace.Sampler
	switch {
	case sampleRate <= 0:
		sampler = sdktrace.NeverSample()
	case sampleRate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(sampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(newResource(serviceName, environment)),
	)
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(serviceName)

	reg := prometheus.NewRegistry()
	p := &Provider{
		tracerProvider: tp,
		tracer:         tracer,
		registry:       reg,
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edon_gateway_decisions_total",
			Help: "Total governor decisions by verdict.",
		}, []string{"verdict"}),
		reasonCodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edon_gateway_reason_codes_total",
			Help: "Total governor decisions by reason code.",
		}, []string{"reason_code"}),
		evaluatorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edon_gateway_evaluator_duration_seconds",
			Help:    "Time spent in the policy evaluator per action.",
			Buckets: prometheus.DefBuckets,
		}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edon_gateway_pipeline_duration_seconds",
			Help:    "Time spent in the HTTP pipeline per route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "status"}),
	}

	reg.MustRegister(p.decisionsTotal, p.reasonCodesTotal, p.evaluatorLatency, p.pipelineLatency)
	return p
}

// Tracer returns the configured tracer for pipeline/connector spans.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// StartSpan starts a span under the given name.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, opts...)
}

// RecordDecision increments the verdict/reason-code counters for one
// evaluated action.
func (p *Provider) RecordDecision(verdict, reasonCode string) {
	p.decisionsTotal.WithLabelValues(verdict).Inc()
	p.reasonCodesTotal.WithLabelValues(reasonCode).Inc()
}

// RecordEvaluatorDuration records the wall time of one Evaluate call.
func (p *Provider) RecordEvaluatorDuration(d time.Duration) {
	p.evaluatorLatency.Observe(d.Seconds())
}

// RecordPipelineDuration records the wall time of one full request.
func (p *Provider) RecordPipelineDuration(path string, status int, d time.Duration) {
	p.pipelineLatency.WithLabelValues(path, http.StatusText(status)).Observe(d.Seconds())
}

// MetricsHandler serves the Prometheus exposition format for GET /metrics.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// TrustSpec is a JSON snapshot of the gateway's current enforcement
// posture, not a time series (that's /timeseries).
type TrustSpec struct {
	ServiceName     string `json:"service_name"`
	Environment     string `json:"environment"`
	PolicyVersion   string `json:"policy_version"`
	RateLimitActive bool   `json:"rate_limit_active"`
	MAGActive       bool   `json:"mag_active"`
	GeneratedAt     string `json:"generated_at"`
}

// TrustSpecHandler serves the trust-spec JSON summary endpoint.
func TrustSpecHandler(spec func() TrustSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(spec())
	}
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tracerProvider.Shutdown(ctx)
}
