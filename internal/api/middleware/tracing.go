package middleware

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api"
)

// Tracing は otelhttp でサーバースパンを開始し、スパン名をルートのパターンに揃える
// トレースコンテキストの取り出しとステータスの記録は otelhttp が行う
func Tracing(service string, opts ...otelhttp.Option) echo.MiddlewareFunc {
	start := echo.WrapMiddleware(otelhttp.NewMiddleware(service, opts...))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return start(func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			span := trace.SpanFromContext(req.Context())
			span.SetName(req.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				attribute.String("service.name", service),
			)

			err := next(c)
			if err == nil {
				return nil
			}
			if status, _ := api.MapError(err); status >= 500 {
				span.RecordError(err)
			}
			// otelhttp がステータスを記録できるよう、ラップした ResponseWriter の内側でエラー応答を書く
			c.Error(err)
			return nil
		})
	}
}
