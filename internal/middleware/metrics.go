package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// ActiveWebSockets is the number of open realtime connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tdh_active_websockets",
		Help: "Number of active WebSocket connections",
	})

	// RateLimited counts requests rejected by a named rate limit.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_rate_limited_total",
		Help: "Total number of requests rejected by rate limiting",
	}, []string{"resource"})
)

var (
	promOnce     sync.Once
	promInstance *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector.
// The collector registers with the default registry, so it is created once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInstance = fiberprometheus.New(serviceName)
	})
	return promInstance
}

// MetricsMiddleware records request count and latency per route.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
