package authhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	core "github.com/open-rails/djibgo-auth/core"
	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	memorystore "github.com/open-rails/djibgo-auth/storage/memory"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "awa@example.dj"
	testPhone    = "+253 77 12 34 56"
	testPassword = "old-password"
)

type testAPI struct {
	svc        *Service
	h          http.Handler
	identity   *memorystore.Identity
	profiles   *memorystore.Profiles
	deliveries *memorystore.Deliveries
	userID     string
}

func newTestAPI(t *testing.T, wrap func(core.IdentityStore) core.IdentityStore) *testAPI {
	t.Helper()
	t.Setenv("ENV", "test")
	ctx := context.Background()

	identity := memorystore.NewIdentity()
	acct, err := identity.CreateAccount(ctx, testEmail, testPhone, testPassword)
	require.NoError(t, err)
	profiles := memorystore.NewProfiles()
	phone := testPhone
	profiles.PutProfile(core.Profile{UserID: acct.ID, DisplayName: "Awa", PhoneNumber: &phone})
	deliveries := memorystore.NewDeliveries()

	signer, err := jwtkit.NewHS256Signer([]byte(strings.Repeat("k", 32)), "djibgo-test")
	require.NoError(t, err)

	var idStore core.IdentityStore = identity
	if wrap != nil {
		idStore = wrap(identity)
	}
	svc := NewService(core.Config{Readback: &core.ReadbackPolicy{Attempts: 1}}).
		WithStores(idStore, profiles, deliveries).
		WithSigner(signer).
		DisableRateLimiter()
	return &testAPI{
		svc:        svc,
		h:          svc.APIHandler(),
		identity:   identity,
		profiles:   profiles,
		deliveries: deliveries,
		userID:     acct.ID,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.h.ServeHTTP(w, r)
	return w
}

var codeInMessage = regexp.MustCompile(`Mot de passe temporaire : (\d{6})`)

func codeFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	m := codeInMessage.FindStringSubmatch(u.Query().Get("text"))
	require.Len(t, m, 2, "code not found in %q", u.Query().Get("text"))
	return m[1]
}

func TestTemporaryPassword_Success(t *testing.T) {
	a := newTestAPI(t, nil)
	before := time.Now()

	w := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"awa@example.dj","phone":"77 12 34 56"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["success"])
	require.NotEmpty(t, body["message"])
	require.Equal(t, "+25377123456", body["phone"])
	_, hasDebug := body["debug"]
	require.False(t, hasDebug)

	link, _ := body["whatsappUrl"].(string)
	require.True(t, strings.HasPrefix(link, "https://wa.me/25377123456?text="), link)
	code := codeFromLink(t, link)
	require.NotContains(t, w.Body.String(), `"`+code+`"`)

	exp, err := time.Parse(time.RFC3339Nano, body["expiresAt"].(string))
	require.NoError(t, err)
	require.WithinDuration(t, before.Add(24*time.Hour), exp, 2*time.Second)

	// The issued code is now the account password.
	_, err = a.identity.SignIn(context.Background(), testEmail, code)
	require.NoError(t, err)
	_, err = a.identity.SignIn(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, core.ErrInvalidCredentials)

	recs := a.deliveries.Records()
	require.Len(t, recs, 1)
	require.Equal(t, core.DeliveryStatusSent, recs[0].Status)
	require.NotContains(t, recs[0].Summary, code)
}

func TestTemporaryPassword_PhoneMismatchLeavesPasswordUnchanged(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"awa@example.dj","phone":"99999999"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"Le numéro de téléphone ne correspond pas à celui associé à ce compte"}`, w.Body.String())

	_, err := a.identity.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Empty(t, a.deliveries.Records())
}

func TestTemporaryPassword_UnknownEmailIsStable(t *testing.T) {
	a := newTestAPI(t, nil)

	first := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"nobody@example.dj","phone":"77123456"}`, "")
	second := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"nobody@example.dj","phone":"77123456"}`, "")
	require.Equal(t, http.StatusNotFound, first.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.JSONEq(t, `{"error":"Aucun compte trouvé avec cette adresse email"}`, first.Body.String())
	require.Empty(t, a.deliveries.Records())
}

func TestTemporaryPassword_ProfileMissing(t *testing.T) {
	a := newTestAPI(t, nil)
	_, err := a.identity.CreateAccount(context.Background(), "orphan@example.dj", "", testPassword)
	require.NoError(t, err)

	w := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"orphan@example.dj","phone":"77123456"}`, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"Profil utilisateur non trouvé"}`, w.Body.String())
}

type failingUpdate struct {
	core.IdentityStore
	err error
}

func (f failingUpdate) UpdateCredential(context.Context, string, core.CredentialUpdate) (*core.Account, error) {
	return nil, f.err
}

func TestTemporaryPassword_StoreRejectionSurfacesMessage(t *testing.T) {
	a := newTestAPI(t, func(id core.IdentityStore) core.IdentityStore {
		return failingUpdate{IdentityStore: id, err: errStore("Database error updating user")}
	})

	w := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"awa@example.dj","phone":"77123456"}`, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"Database error updating user"}`, w.Body.String())
	require.Empty(t, a.deliveries.Records())
}

type errStore string

func (e errStore) Error() string { return string(e) }

type gatedUpdate struct {
	core.IdentityStore
	entered chan struct{}
	gate    chan struct{}
}

func (g gatedUpdate) UpdateCredential(ctx context.Context, id string, upd core.CredentialUpdate) (*core.Account, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.IdentityStore.UpdateCredential(ctx, id, upd)
}

func TestTemporaryPassword_ConcurrentRequestGetsConflict(t *testing.T) {
	g := gatedUpdate{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	a := newTestAPI(t, func(id core.IdentityStore) core.IdentityStore {
		g.IdentityStore = id
		return g
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"awa@example.dj","phone":"77123456"}`, "")
	}()
	<-g.entered

	w := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"awa@example.dj","phone":"77123456"}`, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "30", w.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"Une demande est déjà en cours pour ce compte, réessayez dans quelques instants"}`, w.Body.String())

	close(g.gate)
	first := <-done
	require.Equal(t, http.StatusOK, first.Code)

	var body struct {
		WhatsAppURL string `json:"whatsappUrl"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	_, err := a.identity.SignIn(context.Background(), testEmail, codeFromLink(t, body.WhatsAppURL))
	require.NoError(t, err)
}

func TestPasswordLogin_TemporaryRegimeAndChange(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(t, http.MethodPost, EdgeFunctionPath, `{"email":"awa@example.dj","phone":"77123456"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var issued struct {
		WhatsAppURL string `json:"whatsappUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	code := codeFromLink(t, issued.WhatsAppURL)

	w = a.do(t, http.MethodPost, "/auth/password/login", `{"email":"awa@example.dj","password":"`+code+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken       string     `json:"access_token"`
		TokenType         string     `json:"token_type"`
		TemporaryPassword bool       `json:"temporary_password"`
		TempExpiresAt     *time.Time `json:"temporary_password_expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessToken)
	require.Equal(t, "Bearer", login.TokenType)
	require.True(t, login.TemporaryPassword)
	require.NotNil(t, login.TempExpiresAt)

	w = a.do(t, http.MethodGet, "/auth/user/temporary-password", "", login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"active":true`)

	w = a.do(t, http.MethodPost, "/auth/user/password", `{"current_password":"`+code+`","new_password":"a-much-better-one"}`, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var changed struct {
		OK          bool   `json:"ok"`
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changed))
	require.True(t, changed.OK)
	require.NotEmpty(t, changed.AccessToken)
	require.Equal(t, "Bearer", changed.TokenType)

	// The session opened with the temporary password is gone.
	w = a.do(t, http.MethodGet, "/auth/user/temporary-password", "", login.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"session_revoked"}`, w.Body.String())

	claims, err := a.svc.Core().Authenticate(context.Background(), changed.AccessToken)
	require.NoError(t, err)
	require.False(t, claims.Temporary)

	w = a.do(t, http.MethodGet, "/auth/user/temporary-password", "", changed.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"active":false,"expired":false}`, w.Body.String())

	w = a.do(t, http.MethodDelete, "/auth/logout", "", changed.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodGet, "/auth/user/temporary-password", "", changed.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"session_revoked"}`, w.Body.String())
}

func TestUserPassword_LockedAccountGetsConflict(t *testing.T) {
	a := newTestAPI(t, nil)
	res, err := a.svc.Core().PasswordLogin(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	kv := memorystore.NewKV()
	a.svc.WithEphemeralStore(kv, core.EphemeralMemory)
	ok, err := kv.SetNX(context.Background(), "djibgo:temp_password:lock:"+a.userID, []byte("sweep"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	w := a.do(t, http.MethodPost, "/auth/user/password", `{"current_password":"old-password","new_password":"long-enough-now"}`, res.AccessToken)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "30", w.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"account_busy"}`, w.Body.String())
}

func TestPasswordLogin_ExpiredTemporaryPassword(t *testing.T) {
	a := newTestAPI(t, nil)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, a.profiles.SetTemporaryPassword(context.Background(), a.userID, past.Add(-24*time.Hour), past))

	w := a.do(t, http.MethodPost, "/auth/password/login", `{"email":"awa@example.dj","password":"old-password"}`, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"temporary_password_expired"}`, w.Body.String())
	require.Zero(t, a.identity.SessionCount())
}

func TestPasswordLogin_WrongPassword(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(t, http.MethodPost, "/auth/password/login", `{"email":"awa@example.dj","password":"nope-nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"invalid_credentials"}`, w.Body.String())
}

func TestUserPassword_WeakPassword(t *testing.T) {
	a := newTestAPI(t, nil)
	res, err := a.svc.Core().PasswordLogin(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	w := a.do(t, http.MethodPost, "/auth/user/password", `{"current_password":"old-password","new_password":"short"}`, res.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"weak_password"}`, w.Body.String())

	w = a.do(t, http.MethodPost, "/auth/user/password", `{"current_password":"wrong-one","new_password":"long-enough-now"}`, res.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"invalid_current_password"}`, w.Body.String())
}

func TestAPIHandler_NotInitialized(t *testing.T) {
	s := NewService(core.Config{})
	w := httptest.NewRecorder()
	s.APIHandler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, EdgeFunctionPath, strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"djibgo_not_initialized"}`, w.Body.String())
}

func TestAPIHandler_ProductionRequiresRedis(t *testing.T) {
	a := newTestAPI(t, nil)
	t.Setenv("ENV", "production")
	require.Panics(t, func() { a.svc.APIHandler() })
}
