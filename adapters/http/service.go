package authhttp

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	core "github.com/open-rails/djibgo-auth/core"
	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	memorylimiter "github.com/open-rails/djibgo-auth/ratelimit/memory"
	redislimiter "github.com/open-rails/djibgo-auth/ratelimit/redis"
	memorystore "github.com/open-rails/djibgo-auth/storage/memory"
	pgstore "github.com/open-rails/djibgo-auth/storage/postgres"
	redisstore "github.com/open-rails/djibgo-auth/storage/redis"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service wraps core.Service with net/http mounting helpers.
type Service struct {
	svc       *core.Service
	rl        RateLimiter
	clientIP  ClientIPFunc
	onLimited func(bucket string)
	log       logrus.FieldLogger
}

func (s *Service) allow(r *http.Request, bucket string) bool {
	if s == nil {
		return true
	}
	if AllowNamed(r, s.rl, s.clientIP, bucket) {
		return true
	}
	if s.onLimited != nil {
		s.onLimited(bucket)
	}
	return false
}

// NewService constructs a core.Service and wraps it for net/http mounting.
// Stores must be attached with WithStores or WithPostgres before serving.
func NewService(cfg core.Config) *Service {
	coreSvc := core.NewFromConfig(cfg).
		// Default to in-memory ephemeral store for dev/single-instance use.
		WithEphemeralStore(memorystore.NewKV(), core.EphemeralMemory)
	return &Service{
		svc:      coreSvc,
		rl:       memorylimiter.New(ToMemoryLimits(DefaultRateLimits())),
		clientIP: DefaultClientIP(),
		log:      logrus.StandardLogger(),
	}
}

// WithStores attaches explicit store implementations. A nil delivery log
// disables delivery records.
func (s *Service) WithStores(identity core.IdentityStore, profiles core.ProfileStore, deliveries core.DeliveryLog) *Service {
	s.svc = s.svc.WithIdentityStore(identity).WithProfileStore(profiles).WithDeliveryLog(deliveries)
	return s
}

// WithPostgres uses one pgx-backed store for identities, profiles and delivery records.
func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	st := pgstore.New(pg)
	return s.WithStores(st, st, st)
}

// WithRedis moves the issuance lock and the rate limiter to Redis.
func (s *Service) WithRedis(rd redis.UniversalClient) *Service {
	if rd == nil {
		return s
	}
	s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd), core.EphemeralRedis)
	s.rl = redislimiter.New(rd, ToRedisLimits(DefaultRateLimits()))
	return s
}

func (s *Service) WithSigner(sg *jwtkit.Signer) *Service          { s.svc = s.svc.WithSigner(sg); return s }
func (s *Service) WithMetrics(m core.Metrics) *Service            { s.svc = s.svc.WithMetrics(m); return s }
func (s *Service) WithRateLimiter(rl RateLimiter) *Service        { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service                   { s.rl = nil; return s }
func (s *Service) WithRateLimitObserver(fn func(string)) *Service { s.onLimited = fn; return s }
func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
		return s
	}
	s.clientIP = fn
	return s
}

func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l == nil {
		l = logrus.StandardLogger()
	}
	s.log = l
	s.svc = s.svc.WithLogger(l)
	return s
}

func (s *Service) WithEphemeralStore(store core.EphemeralStore, mode core.EphemeralMode) *Service {
	s.svc = s.svc.WithEphemeralStore(store, mode)
	return s
}

func (s *Service) Core() *core.Service { return s.svc }
