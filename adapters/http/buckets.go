package authhttp

// Bucket names used by the endpoints.
const (
	RLTemporaryPasswordWhatsApp = "djibgo_temp_password_whatsapp"

	RLPasswordLogin         = "auth_password_login"
	RLAuthLogout            = "auth_logout"
	RLUserPasswordChange    = "auth_user_password_change"
	RLUserTemporaryPassword = "auth_user_temporary_password"
)
