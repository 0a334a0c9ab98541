package core

import (
	"context"
	"time"

	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	"github.com/sirupsen/logrus"
)

// Service runs the temporary password flow and the password login/change
// operations that consume it. Stores are injected with the With* builders.
type Service struct {
	opts           Options
	identity       IdentityStore
	profiles       ProfileStore
	deliveries     DeliveryLog
	ephemeralStore EphemeralStore
	ephemeralMode  EphemeralMode
	signer         *jwtkit.Signer
	metrics        Metrics
	log            logrus.FieldLogger

	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	genPassword func() (string, error)
}

func NewService(opts Options) *Service {
	return &Service{
		opts:          opts,
		ephemeralMode: EphemeralMemory,
		metrics:       nopMetrics{},
		log:           logrus.StandardLogger(),
		now:           time.Now,
		sleep:         sleepCtx,
		genPassword:   GenerateTemporaryPassword,
	}
}

// NewFromConfig resolves cfg defaults and creates a Service.
func NewFromConfig(cfg Config) *Service { return NewService(cfg.Resolve()) }

func (s *Service) Options() Options { return s.opts }

func (s *Service) WithIdentityStore(st IdentityStore) *Service { s.identity = st; return s }
func (s *Service) WithProfileStore(st ProfileStore) *Service   { s.profiles = st; return s }
func (s *Service) WithDeliveryLog(l DeliveryLog) *Service      { s.deliveries = l; return s }
func (s *Service) WithSigner(sg *jwtkit.Signer) *Service       { s.signer = sg; return s }

// WithMetrics wires an outcome sink (e.g. Prometheus). Nil disables it.
func (s *Service) WithMetrics(m Metrics) *Service {
	if m == nil {
		m = nopMetrics{}
	}
	s.metrics = m
	return s
}

func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l == nil {
		l = logrus.StandardLogger()
	}
	s.log = l
	return s
}

// WithClock overrides time.Now; tests use it to pin expiry timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	s.now = now
	return s
}

func (s *Service) Identity() IdentityStore { return s.identity }
func (s *Service) Profiles() ProfileStore  { return s.profiles }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
