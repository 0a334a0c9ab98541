package core

import (
	"net/url"
	"strings"
	"time"
)

// MessageData feeds BuildMessage.
type MessageData struct {
	Name      string
	Email     string
	Code      string
	ExpiresAt time.Time
	LoginURL  string
}

// BuildMessage renders the WhatsApp text. Output is deterministic for a given
// input and always carries the code, the email and a call to log in now.
func BuildMessage(d MessageData) string {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = "utilisateur"
	}
	var b strings.Builder
	b.WriteString("Bonjour ")
	b.WriteString(name)
	b.WriteString(",\n\n")
	b.WriteString("Voici votre mot de passe temporaire DjibGo.\n\n")
	b.WriteString("Email : ")
	b.WriteString(d.Email)
	b.WriteString("\nMot de passe temporaire : ")
	b.WriteString(d.Code)
	b.WriteString("\n\n")
	if !d.ExpiresAt.IsZero() {
		b.WriteString("Ce mot de passe expire le ")
		b.WriteString(d.ExpiresAt.UTC().Format("02/01/2006 à 15:04 UTC"))
		b.WriteString(".\n")
	}
	b.WriteString("Connectez-vous immédiatement")
	if u := strings.TrimSpace(d.LoginURL); u != "" {
		b.WriteString(" sur ")
		b.WriteString(u)
	}
	b.WriteString(" puis changez votre mot de passe depuis votre profil.")
	return b.String()
}

// WhatsAppURL builds the click-to-chat link for phone with text pre-filled.
func WhatsAppURL(base, phone, text string) string {
	if base == "" {
		base = defaultWhatsAppBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	// Spaces as %20: some WhatsApp clients keep a literal "+".
	return base + phoneDigits(phone) + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func deliverySummary(email string) string {
	return "temporary password instructions for " + email
}
