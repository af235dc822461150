package api

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"careerlink-auth/internal/model"
	"careerlink-auth/internal/service"
)

const (
	authUserKey = "authUser"
	metricsPath = "/metrics"
)

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		},
	)
	authFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Requests rejected by the authentication or role middleware",
		},
		[]string{"reason"},
	)
)

// Protect requires a valid bearer token and attaches the token's user to the
// request. Handlers read it back with CurrentUser.
func Protect(authService service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			authFailuresTotal.WithLabelValues("no_token").Inc()
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": service.MsgNoToken})
		}

		user, err := authService.Authenticate(c.UserContext(), token)
		if err != nil {
			var svcErr *service.Error
			if errors.As(err, &svcErr) {
				authFailuresTotal.WithLabelValues(svcErr.Kind.String()).Inc()
			}
			return writeError(c, err)
		}

		c.Locals(authUserKey, user)

		return c.Next()
	}
}

// RestrictTo only lets through requests whose authenticated user has one of
// the given roles. It must run after Protect.
func RestrictTo(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok || !slices.Contains(roles, user.Role) {
			authFailuresTotal.WithLabelValues("forbidden").Inc()
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": service.MsgForbidden})
		}

		return c.Next()
	}
}

func CurrentUser(c *fiber.Ctx) (*model.PublicUser, bool) {
	user, ok := c.Locals(authUserKey).(*model.PublicUser)
	return user, ok && user != nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// RateLimit caps requests per client IP. A max of zero disables it.
func RateLimit(maxRequests int, window time.Duration) fiber.Handler {
	if maxRequests <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many requests, please try again later.",
			})
		},
	})
}

// PrometheusMiddleware records request counts, latency and in-flight requests
// by route template. The scrape endpoint itself is not recorded.
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == metricsPath {
			return c.Next()
		}

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		labels := prometheus.Labels{
			"method":      c.Method(),
			"path":        c.Route().Path,
			"status_code": strconv.Itoa(status),
		}
		httpRequestTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}
