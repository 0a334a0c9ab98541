package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
)

// DefaultExpirySchedule runs the sweep every 15 minutes.
const DefaultExpirySchedule = "*/15 * * * *"

type ExpireTemporaryPasswordsArgs struct {
	BatchSize int `json:"batch_size,omitempty"`
}

func (ExpireTemporaryPasswordsArgs) Kind() string { return "djibgo_expire_temporary_passwords" }

func (args ExpireTemporaryPasswordsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 15 * time.Minute,
			ByQueue:  true,
		},
	}
}

// Expirer is implemented by *core.Service.
type Expirer interface {
	ExpireTemporaryPasswords(ctx context.Context, now time.Time, batch int) (int, error)
}

// ExpireTemporaryPasswordsWorker revokes temporary passwords whose expiry has
// passed without the user choosing a new password.
//
// OnExpired, when set, receives the number of accounts revoked per run.
type ExpireTemporaryPasswordsWorker struct {
	river.WorkerDefaults[ExpireTemporaryPasswordsArgs]
	svc       Expirer
	OnExpired func(n int)
	now       func() time.Time
}

func NewExpireTemporaryPasswordsWorker(svc Expirer) *ExpireTemporaryPasswordsWorker {
	return &ExpireTemporaryPasswordsWorker{svc: svc, now: time.Now}
}

func (w *ExpireTemporaryPasswordsWorker) Timeout(*river.Job[ExpireTemporaryPasswordsArgs]) time.Duration {
	return 5 * time.Minute
}

func (w *ExpireTemporaryPasswordsWorker) Work(ctx context.Context, job *river.Job[ExpireTemporaryPasswordsArgs]) error {
	if w == nil || w.svc == nil {
		return errors.New("djibgo expiry: service not configured")
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = 500
	}
	n, err := w.svc.ExpireTemporaryPasswords(ctx, w.now(), batch)
	if w.OnExpired != nil {
		w.OnExpired(n)
	}
	return err
}
