package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Issuance stages, logged in order for every attempt.
const (
	StageLookup            = "lookup"
	StageVerifiedPhone     = "verified_phone"
	StageCredentialIssued  = "credential_issued"
	StageSelfTestOK        = "self_test_ok"
	StageSelfTestFailed    = "self_test_failed"
	StageDeliveryLinkBuilt = "delivery_link_built"
	StageDone              = "done"
)

// Outcomes reported to Metrics.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalid       = "invalid"
	OutcomeNotFound      = "not_found"
	OutcomePhoneMismatch = "phone_mismatch"
	OutcomeConflict      = "conflict"
	OutcomeFailed        = "failed"
)

// Issuance is what a caller may see of a successful issuance. The credential
// itself is deliberately absent: it only leaves through the message link.
type Issuance struct {
	UserID           string
	WhatsAppURL      string
	Phone            string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	AccountConfirmed bool
	SelfTestPassed   bool
}

// IssueTemporaryPassword replaces the account password with a fresh 6-digit
// temporary one and returns a WhatsApp link carrying it.
//
// Failures before the credential write leave every store untouched. Once the
// identity store accepts the write the call succeeds: read-back, expiry
// bookkeeping, self-test and delivery logging are best-effort.
func (s *Service) IssueTemporaryPassword(ctx context.Context, email, phone string) (iss *Issuance, err error) {
	start := s.now()
	defer func() { s.metrics.IssuanceFinished(issuanceOutcome(err), s.now().Sub(start)) }()

	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}
	log := s.log.WithField("email", email)
	log.WithField("stage", StageLookup).Debug("temporary password requested")

	acct, prof, err := s.lookup(ctx, email, phone)
	if err != nil {
		return nil, err
	}
	log = log.WithField("user_id", acct.ID)
	log.WithField("stage", StageVerifiedPhone).Debug("identity resolved")

	release, err := s.lockAccount(ctx, acct.ID)
	if errors.Is(err, ErrLockHeld) {
		return nil, ErrIssuanceInProgress
	}
	if err != nil {
		return nil, err
	}
	defer release()

	code, err := s.genPassword()
	if err != nil {
		return nil, fmt.Errorf("generate temporary password: %w", err)
	}

	confirmed := true
	issuedAt := s.now()
	updated, err := s.identity.UpdateCredential(ctx, acct.ID, CredentialUpdate{
		Password:      code,
		EmailVerified: &confirmed,
		PhoneVerified: &confirmed,
		ClearBan:      true,
	})
	if err != nil {
		log.WithError(err).Error("identity store rejected temporary password")
		return nil, &IssuanceError{UserID: acct.ID, Err: err}
	}
	log.WithField("stage", StageCredentialIssued).Info("temporary password installed")
	if s.opts.DevMode {
		log.WithField("code", code).Warn("[djibgo/dev] temporary password")
	}

	// The credential is committed; a client disconnect must not skip the
	// bookkeeping below.
	ctx = context.WithoutCancel(ctx)

	iss = &Issuance{UserID: acct.ID, IssuedAt: issuedAt, ExpiresAt: issuedAt.Add(s.opts.TemporaryPasswordTTL)}
	iss.AccountConfirmed = s.readBack(ctx, log, acct.ID, updated)

	if err := s.profiles.SetTemporaryPassword(ctx, acct.ID, iss.IssuedAt, iss.ExpiresAt); err != nil {
		log.WithError(err).Warn("failed to record temporary password expiry")
	}

	iss.SelfTestPassed = s.selfTest(ctx, log, email, code)

	iss.Phone = DeliveryPhone(phone, s.opts.DefaultCountryPrefix)
	text := BuildMessage(MessageData{
		Name:      prof.DisplayName,
		Email:     email,
		Code:      code,
		ExpiresAt: iss.ExpiresAt,
		LoginURL:  s.opts.LoginURL,
	})
	iss.WhatsAppURL = WhatsAppURL(s.opts.WhatsAppBaseURL, iss.Phone, text)
	log.WithField("stage", StageDeliveryLinkBuilt).Debug("delivery link built")

	if s.deliveries != nil {
		rec := DeliveryRecord{
			ID:        NewDeliveryID(issuedAt),
			UserID:    acct.ID,
			Phone:     iss.Phone,
			Channel:   DeliveryChannelWhatsApp,
			Status:    DeliveryStatusSent,
			Summary:   deliverySummary(email),
			CreatedAt: s.now(),
		}
		if err := s.deliveries.AppendDeliveryRecord(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to append delivery record")
		}
	}

	log.WithFields(logrus.Fields{
		"stage":      StageDone,
		"confirmed":  iss.AccountConfirmed,
		"self_test":  iss.SelfTestPassed,
		"expires_at": iss.ExpiresAt,
	}).Info("temporary password issued")
	return iss, nil
}

// readBack polls the account until the confirmation flags and update time
// reflect the write, within the configured policy.
func (s *Service) readBack(ctx context.Context, log logrus.FieldLogger, userID string, updated *Account) bool {
	p := s.opts.Readback
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := s.sleep(ctx, p.delay(attempt)); err != nil {
			log.WithError(err).Warn("read-back interrupted")
			return false
		}
		a, err := s.identity.GetAccountByID(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt+1).Debug("read-back failed")
			continue
		}
		if credentialApplied(a, updated) {
			return true
		}
	}
	if p.Attempts > 0 {
		log.WithField("attempts", p.Attempts).Warn("read-back did not confirm the credential update")
	}
	return false
}

func credentialApplied(a, updated *Account) bool {
	if a == nil || !a.EmailVerified || !a.PhoneVerified {
		return false
	}
	return updated == nil || !a.UpdatedAt.Before(updated.UpdatedAt)
}

// selfTest signs in with the new credential and immediately signs the
// session out again.
func (s *Service) selfTest(ctx context.Context, log logrus.FieldLogger, email, code string) bool {
	if !s.opts.SelfTest {
		return false
	}
	sess, err := s.identity.SignIn(ctx, email, code)
	if err != nil {
		log.WithError(err).WithField("stage", StageSelfTestFailed).Warn("self-test sign-in failed; continuing")
		s.metrics.SelfTestFinished(false)
		return false
	}
	if err := s.identity.SignOut(ctx, sess.ID); err != nil {
		log.WithError(err).Warn("self-test sign-out failed")
	}
	log.WithField("stage", StageSelfTestOK).Debug("self-test passed")
	s.metrics.SelfTestFinished(true)
	return true
}

func issuanceOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrPhoneRequired):
		return OutcomeInvalid
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrProfileNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrPhoneMismatch):
		return OutcomePhoneMismatch
	case errors.Is(err, ErrIssuanceInProgress):
		return OutcomeConflict
	default:
		return OutcomeFailed
	}
}
