package telemetry

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/skekre98/chatlog/core"
)

const instrumentationName = "github.com/skekre98/chatlog/telemetry"

var listenerKey = attribute.Key("chatlog.listener")

type observer struct {
	listener   string
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Observer opens a server span for each request on listener, continuing
// any trace found in the incoming headers. A nil tp uses the global
// provider and propagator installed by Init.
func Observer(listener string, tp trace.TracerProvider) core.RequestObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &observer{
		listener:   listener,
		tracer:     tp.Tracer(instrumentationName),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (o *observer) Before(r *http.Request) *http.Request {
	ctx := o.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, _ = o.tracer.Start(ctx, r.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPath(r.URL.Path),
			listenerKey.String(o.listener),
		),
	)
	return r.WithContext(ctx)
}

func (o *observer) After(r *http.Request, info core.RequestInfo) {
	span := trace.SpanFromContext(r.Context())
	defer span.End()

	if info.Route != "" {
		span.SetName(r.Method + " " + info.Route)
		span.SetAttributes(semconv.HTTPRoute(info.Route))
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(info.Status))
	if info.Err != nil {
		span.RecordError(info.Err)
	}
	if info.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(info.Status))
	}
}
