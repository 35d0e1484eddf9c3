package middleware

import (
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
)

// 指标未初始化时中间件必须照常放行请求
func TestOpenTelemetryMiddlewareWithoutMetrics(t *testing.T) {
	httpServerRequestTotal = nil
	httpServerDuration = nil
	httpServerActiveRequests = nil

	engine := route.NewEngine(hertzconfig.NewOptions([]hertzconfig.Option{}))
	engine.Use(OpenTelemetryMiddleware())
	engine.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.String(200, "pong")
	})

	w := ut.PerformRequest(engine, "GET", "/ping", nil)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode())
	}
}
