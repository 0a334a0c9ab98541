package core

import "errors"

// User-facing messages of the temporary password flow. The web client shows
// them verbatim.
const (
	MsgTemporaryPasswordSent = "Mot de passe temporaire généré. Ouvrez WhatsApp pour l'envoyer."
	MsgInvalidRequest        = "Requête invalide"
	MsgEmailRequired         = "Email requis"
	MsgPhoneRequired         = "Numéro de téléphone requis"
	MsgPhoneMismatch         = "Le numéro de téléphone ne correspond pas à celui associé à ce compte"
	MsgAccountNotFound       = "Aucun compte trouvé avec cette adresse email"
	MsgProfileNotFound       = "Profil utilisateur non trouvé"
	MsgIssuanceInProgress    = "Une demande est déjà en cours pour ce compte, réessayez dans quelques instants"
	MsgRateLimited           = "Trop de demandes, réessayez plus tard"
	MsgInternal              = "Erreur interne du serveur"
)

// UserMessage returns the message shown for an issuance error. Store
// failures pass the store's own text through; anything unrecognised gets
// MsgInternal.
func UserMessage(err error) string {
	var (
		issErr    *IssuanceError
		lookupErr *LookupError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmailRequired):
		return MsgEmailRequired
	case errors.Is(err, ErrPhoneRequired):
		return MsgPhoneRequired
	case errors.Is(err, ErrPhoneMismatch):
		return MsgPhoneMismatch
	case errors.Is(err, ErrAccountNotFound):
		return MsgAccountNotFound
	case errors.Is(err, ErrProfileNotFound):
		return MsgProfileNotFound
	case errors.Is(err, ErrIssuanceInProgress), errors.Is(err, ErrAccountBusy):
		return MsgIssuanceInProgress
	case errors.As(err, &issErr):
		return issErr.Error()
	case errors.As(err, &lookupErr) && lookupErr.Err != nil:
		return lookupErr.Err.Error()
	default:
		return MsgInternal
	}
}
