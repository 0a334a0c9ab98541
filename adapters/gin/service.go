package authgin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-rails/djibgo-auth/adapters/gin/handlers"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	memorylimiter "github.com/open-rails/djibgo-auth/ratelimit/memory"
	redisl "github.com/open-rails/djibgo-auth/ratelimit/redis"
	memorystore "github.com/open-rails/djibgo-auth/storage/memory"
	pgstore "github.com/open-rails/djibgo-auth/storage/postgres"
	redisstore "github.com/open-rails/djibgo-auth/storage/redis"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// EdgeFunctionPath is the route of the temporary password endpoint.
const EdgeFunctionPath = "/functions/v1/send-temporary-password-whatsapp"

const allowHeaders = "authorization, x-client-info, apikey, content-type"

// Service wraps core.Service with Gin mounting helpers.
type Service struct {
	svc *core.Service
	rd  redis.UniversalClient
	rl  ginutil.RateLimiter
}

// NewService constructs a core.Service and wraps it for Gin mounting.
func NewService(cfg core.Config) *Service {
	coreSvc := core.NewFromConfig(cfg).WithEphemeralStore(memorystore.NewKV(), core.EphemeralMemory)
	return &Service{svc: coreSvc}
}

func (s *Service) WithStores(identity core.IdentityStore, profiles core.ProfileStore, deliveries core.DeliveryLog) *Service {
	s.svc = s.svc.WithIdentityStore(identity).WithProfileStore(profiles).WithDeliveryLog(deliveries)
	return s
}

func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	st := pgstore.New(pg)
	return s.WithStores(st, st, st)
}

func (s *Service) WithRedis(rd redis.UniversalClient) *Service {
	s.rd = rd
	if rd != nil {
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd), core.EphemeralRedis)
	}
	return s
}

func (s *Service) WithSigner(sg *jwtkit.Signer) *Service           { s.svc = s.svc.WithSigner(sg); return s }
func (s *Service) WithMetrics(m core.Metrics) *Service             { s.svc = s.svc.WithMetrics(m); return s }
func (s *Service) WithRateLimiter(rl ginutil.RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) WithLogger(l log.FieldLogger) *Service           { s.svc = s.svc.WithLogger(l); return s }

// GinRegisterAPI mounts the JSON API endpoints under the given router/group (e.g., /api/v1).
func (s *Service) GinRegisterAPI(api gin.IRouter) *Service {
	rl := s.ensureLimiter()
	auth := MiddlewareFromSVC(s)
	cors := CORS()

	api.OPTIONS(EdgeFunctionPath, cors)
	api.POST(EdgeFunctionPath, cors, handlers.HandleTemporaryPasswordWhatsAppPOST(s.svc, rl))

	api.OPTIONS("/auth/password/login", cors)
	api.POST("/auth/password/login", cors, handlers.HandlePasswordLoginPOST(s.svc, rl))

	api.OPTIONS("/auth/logout", cors)
	api.DELETE("/auth/logout", cors, auth.Required(), handlers.HandleLogoutDELETE(s.svc, rl))

	api.OPTIONS("/auth/user/password", cors)
	api.POST("/auth/user/password", cors, auth.Required(), handlers.HandleUserPasswordPOST(s.svc, rl))

	api.OPTIONS("/auth/user/temporary-password", cors)
	api.GET("/auth/user/temporary-password", cors, auth.Required(), handlers.HandleUserTemporaryPasswordGET(s.svc, rl))
	return s
}

func (s *Service) Core() *core.Service { return s.svc }

// CORS sets the wildcard origin and the header allow-list on every response
// and answers OPTIONS with 200 "ok".
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}, ", "))
			c.String(http.StatusOK, "ok")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Service) ensureLimiter() ginutil.RateLimiter {
	if s.rl != nil {
		return s.rl
	}
	if s.rd != nil {
		return redisl.New(s.rd, defaultLimits())
	}
	// Fallback: in-memory rate limiter for single-node deployments when Redis
	// is unavailable.
	log.Info("djibgo: Redis client not configured; using in-memory rate limiter (single-node only)")
	return memorylimiter.New(defaultMemoryLimits())
}

// defaultLimits provides the default per-IP limits for the endpoints.
func defaultLimits() map[string]redisl.Limit {
	return map[string]redisl.Limit{
		"default":                           {Limit: 120, Window: time.Minute},
		ginutil.RLTemporaryPasswordWhatsApp: {Limit: 5, Window: 15 * time.Minute},
		ginutil.RLPasswordLogin:             {Limit: 20, Window: time.Hour},
		ginutil.RLAuthLogout:                {Limit: 60, Window: 10 * time.Minute},
		ginutil.RLUserPasswordChange:        {Limit: 6, Window: time.Hour},
		ginutil.RLUserTemporaryPassword:     {Limit: 120, Window: time.Minute},
	}
}

// defaultMemoryLimits mirrors defaultLimits but for the in-memory limiter type.
func defaultMemoryLimits() map[string]memorylimiter.Limit {
	out := make(map[string]memorylimiter.Limit)
	for k, v := range defaultLimits() {
		out[k] = memorylimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}
