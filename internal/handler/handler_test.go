package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/middleware"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
	"github.com/yoshi-pos/pos-web/internal/service"
	"github.com/yoshi-pos/pos-web/internal/signin"
	"github.com/yoshi-pos/pos-web/internal/web"
	"github.com/yoshi-pos/pos-web/pkg/auth/manager"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ============================================================================
// Моки
// ============================================================================

type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) Initiate(ctx context.Context, provider string, cred *signin.Credential, callbackURL string) (*signin.InitiateResult, error) {
	args := m.Called(provider, cred, callbackURL)
	if res := args.Get(0); res != nil {
		return res.(*signin.InitiateResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuth) HandleCallback(ctx context.Context, provider string, params url.Values, client service.ClientInfo) (*service.CallbackResult, error) {
	args := m.Called(provider, params)
	if res := args.Get(0); res != nil {
		return res.(*service.CallbackResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetProfile(userID uint) (*entity.User, error) {
	args := m.Called(userID)
	if u := args.Get(0); u != nil {
		return u.(*entity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfiles) UpdateName(userID uint, name string) error {
	return m.Called(userID, name).Error(0)
}

// stubSessions resolves a fixed session for requests carrying the session cookie.
type stubSessions struct {
	session   *entity.Session
	cookies   *manager.CookieManager
	destroyed int
}

func (s *stubSessions) Resolve(_ context.Context, r *http.Request) (*entity.Session, error) {
	if _, err := s.cookies.GetSessionCookie(r); err != nil {
		return nil, nil
	}
	return s.session, nil
}

func (s *stubSessions) NeedsRefresh(*entity.Session) bool { return false }

func (s *stubSessions) Refresh(context.Context, *entity.Session) (string, error) { return "", nil }

func (s *stubSessions) Cookies() *manager.CookieManager { return s.cookies }

func (s *stubSessions) Destroy(context.Context, *http.Request) error {
	s.destroyed++
	return nil
}

type testApp struct {
	router   *gin.Engine
	auth     *MockAuth
	profiles *MockProfiles
	sessions *stubSessions
}

func newTestApp(t *testing.T, health map[string]HealthCheck) *testApp {
	t.Helper()

	app := &testApp{
		auth:     new(MockAuth),
		profiles: new(MockProfiles),
		sessions: &stubSessions{
			session: &entity.Session{ID: "s1", UserID: 1, Email: "owner@shop.com", Name: "owner"},
			cookies: manager.NewCookieManager("pos_session", false),
		},
	}

	errs := middleware.NewErrorContextStore(false)
	page := signin.NewPage(signin.PageConfig{
		Auth:      app.auth,
		Sessions:  middleware.RequestSessionResolver{},
		Guard:     signin.NewLocalGuard(),
		Forms:     signin.NewMemoryFormStateStore(),
		Providers: []signin.ProviderButton{{ID: "google", Label: "Google"}, {ID: "line", Label: "LINE"}},
	})
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	app.router = NewRouter(RouterConfig{
		Signin:     NewSigninHandler(page, app.auth, app.sessions, errs, false, nil),
		Onboarding: NewOnboardingHandler(app.profiles, errs, app.sessions.cookies, nil),
		Health:     NewHealthHandler(health),
		Errors:     errs,
		Sessions:   middleware.NewSessionMiddleware(app.sessions, errs, nil),
		Renderer:   renderer,
	})
	return app
}

func (a *testApp) do(req *http.Request, signedIn bool) *httptest.ResponseRecorder {
	if signedIn {
		req.AddCookie(&http.Cookie{Name: "pos_session", Value: "token"})
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorContextOf(t *testing.T, rec *httptest.ResponseRecorder) *signin.ErrorContext {
	t.Helper()
	c := responseCookie(rec, middleware.ErrorContextCookie)
	require.NotNil(t, c, "error context cookie not set")
	b, err := base64.RawURLEncoding.DecodeString(c.Value)
	require.NoError(t, err)
	var ec signin.ErrorContext
	require.NoError(t, json.Unmarshal(b, &ec))
	return &ec
}

// ============================================================================
// Sign-in page
// ============================================================================

func TestSignin_RendersForm(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/signin", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/auth/signin/email"`)
	assert.Contains(t, rec.Body.String(), "Sign in with Google")
	assert.Contains(t, rec.Body.String(), `id="modal-root"`)

	form := responseCookie(rec, FormCookie)
	require.NotNil(t, form)
	assert.NotEmpty(t, form.Value)
}

func TestSignin_SignedInRedirectsToDashboard(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/signin", nil), true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, signin.DashboardPath, rec.Header().Get("Location"))
	assert.Nil(t, responseCookie(rec, FormCookie))
}

func TestSignin_QueryErrorMessages(t *testing.T) {
	app := newTestApp(t, nil)

	tests := map[string]string{
		"OAuthAccountNotLinked": "To confirm your identity, sign in with the same account you used originally.",
		"EmailSignin":           "Check your email address.",
		"Verification":          "Unable to sign in.",
	}
	for code, want := range tests {
		rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/signin?error="+code, nil), false)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), want, code)
	}
}

func TestSignin_InvalidEmailSkipsService(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(postForm("/auth/signin/email", url.Values{"email": {"not-an-email"}}), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), signin.MsgEmailInvalid)

	rec = app.do(postForm("/auth/signin/email", url.Values{"email": {"  "}}), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), signin.MsgEmailRequired)

	app.auth.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignin_EmailSubmitRedirects(t *testing.T) {
	app := newTestApp(t, nil)
	app.auth.On("Initiate", entity.ProviderEmail, &signin.Credential{Email: "owner@shop.com"}, signin.DashboardPath).
		Return(&signin.InitiateResult{RedirectURL: service.VerifyRequestPath}, nil)

	rec := app.do(postForm("/auth/signin/email", url.Values{"email": {"owner@shop.com"}}), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, service.VerifyRequestPath, rec.Header().Get("Location"))
	app.auth.AssertExpectations(t)
}

func TestSignin_EmailSubmitApplicationError(t *testing.T) {
	app := newTestApp(t, nil)
	app.auth.On("Initiate", entity.ProviderEmail, mock.Anything, mock.Anything).
		Return(nil, signin.NewAppError(signin.CodeDatabaseError, errors.New("db down")))

	rec := app.do(postForm("/auth/signin/email", url.Values{"email": {"owner@shop.com"}}), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The signin process failed. Please try again later.")
	assert.Equal(t, signin.CodeDatabaseError, errorContextOf(t, rec).ErrorName)
}

func TestSignin_ProviderButtonRedirects(t *testing.T) {
	app := newTestApp(t, nil)
	app.auth.On("Initiate", "google", (*signin.Credential)(nil), signin.DashboardPath).
		Return(&signin.InitiateResult{RedirectURL: "https://accounts.google.com/o/oauth2/v2/auth?state=x"}, nil)
	app.auth.On("Initiate", "line", (*signin.Credential)(nil), signin.DashboardPath).
		Return(nil, signin.NewCallbackError(signin.CodeOAuthSignin, service.ErrProviderNotConfigured))

	rec := app.do(postForm("/auth/signin/google", nil), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://accounts.google.com/"))

	rec = app.do(postForm("/auth/signin/line", nil), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/signin?error=OAuthSignin", rec.Header().Get("Location"))
}

// ============================================================================
// Callback, sign-out
// ============================================================================

func TestCallback_SuccessSetsSession(t *testing.T) {
	app := newTestApp(t, nil)
	app.auth.On("HandleCallback", "email", mock.Anything).Return(&service.CallbackResult{
		Session:     &entity.Session{ID: "s1", ExpiresAt: time.Now().Add(time.Hour)},
		Token:       "signed-token",
		RedirectURL: "/onboarding",
	}, nil)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback/email?token=t&email=a%40shop.com", nil), false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/onboarding", rec.Header().Get("Location"))

	session := responseCookie(rec, "pos_session")
	require.NotNil(t, session)
	assert.Equal(t, "signed-token", session.Value)

	cleared := responseCookie(rec, middleware.ErrorContextCookie)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
}

func TestCallback_Failures(t *testing.T) {
	app := newTestApp(t, nil)
	app.auth.On("HandleCallback", "email", mock.Anything).
		Return(nil, signin.NewCallbackError(signin.CodeVerification, service.ErrVerificationLinkInvalid))
	app.auth.On("HandleCallback", "google", mock.Anything).
		Return(nil, signin.NewAppError(signin.CodeEmailAlreadyInUse, apperrors.ErrConflict))
	app.auth.On("HandleCallback", "line", mock.Anything).
		Return(nil, errors.New("boom"))

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback/email", nil), false)
	assert.Equal(t, "/auth/signin?error=Verification", rec.Header().Get("Location"))

	rec = app.do(httptest.NewRequest(http.MethodGet, "/auth/callback/google", nil), false)
	assert.Equal(t, signin.SigninPath, rec.Header().Get("Location"))
	assert.Equal(t, signin.CodeEmailAlreadyInUse, errorContextOf(t, rec).ErrorName)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/auth/callback/line", nil), false)
	assert.Equal(t, signin.SigninPath, rec.Header().Get("Location"))
	assert.Equal(t, signin.CodeUnexpected, errorContextOf(t, rec).ErrorName)
}

func TestSignin_ToastFromErrorContextShownOnce(t *testing.T) {
	app := newTestApp(t, nil)

	first := app.do(httptest.NewRequest(http.MethodGet, "/auth/signin", nil), false)
	formCookie := responseCookie(first, FormCookie)
	require.NotNil(t, formCookie)

	ec, _ := json.Marshal(signin.ErrorContext{ErrorName: signin.CodeEmailAlreadyInUse})
	errCookie := &http.Cookie{Name: middleware.ErrorContextCookie, Value: base64.RawURLEncoding.EncodeToString(ec)}

	load := func() string {
		req := httptest.NewRequest(http.MethodGet, "/auth/signin", nil)
		req.AddCookie(formCookie)
		req.AddCookie(errCookie)
		return app.do(req, false).Body.String()
	}

	assert.Contains(t, load(), `class="toast"`)
	assert.NotContains(t, load(), `class="toast"`)
}

func TestSignOut(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(httptest.NewRequest(http.MethodPost, "/auth/signout", nil), true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, signin.SigninPath, rec.Header().Get("Location"))
	assert.Equal(t, 1, app.sessions.destroyed)
	cookie := responseCookie(rec, "pos_session")
	require.NotNil(t, cookie)
	assert.True(t, cookie.MaxAge < 0)
}

func TestVerifyRequestPage(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/verify-request", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Check your email")
}

// ============================================================================
// Dashboard, onboarding
// ============================================================================

func TestDashboard_RequiresSession(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), signin.SigninPath))
	assert.Equal(t, signin.CodeNotAllowedAccess, errorContextOf(t, rec).ErrorName)
}

func TestDashboard_RendersUser(t *testing.T) {
	app := newTestApp(t, nil)
	app.profiles.On("GetProfile", uint(1)).Return(&entity.User{ID: 1, Email: "owner@shop.com", Name: "Kenji"}, nil)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, Kenji")
}

func TestDashboard_MissingUserSignsOut(t *testing.T) {
	app := newTestApp(t, nil)
	app.profiles.On("GetProfile", uint(1)).Return(nil, signin.NewAppError(signin.CodeUnauthorized, apperrors.ErrNotFound))

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, signin.SigninPath, rec.Header().Get("Location"))
	assert.Equal(t, signin.CodeUnauthorized, errorContextOf(t, rec).ErrorName)
	cookie := responseCookie(rec, "pos_session")
	require.NotNil(t, cookie)
	assert.True(t, cookie.MaxAge < 0)
}

func TestOnboarding_StatusBar(t *testing.T) {
	app := newTestApp(t, nil)
	app.profiles.On("GetProfile", uint(1)).Return(&entity.User{ID: 1, Email: "owner@shop.com"}, nil)

	tests := []struct {
		step    string
		reached int
		next    string
	}{
		{"", 1, ""},
		{"Menu", 3, "Next: Payment"},
		{"Done", 5, ""},
		{"Unknown", 0, ""},
	}
	for _, tt := range tests {
		rec := app.do(httptest.NewRequest(http.MethodGet, "/onboarding?step="+tt.step, nil), true)
		require.Equal(t, http.StatusOK, rec.Code, tt.step)
		body := rec.Body.String()
		assert.Equal(t, tt.reached, strings.Count(body, `<li class="reached`), tt.step)
		if tt.next != "" {
			assert.Contains(t, body, tt.next, tt.step)
		}
	}
}

func TestOnboarding_SaveAccount(t *testing.T) {
	app := newTestApp(t, nil)
	app.profiles.On("UpdateName", uint(1), "Corner Cafe").Return(nil)
	app.profiles.On("UpdateName", uint(1), "").Return(signin.NewAppError(signin.CodeUpdateUserError, apperrors.ErrValidation))

	rec := app.do(postForm("/onboarding/account", url.Values{"name": {"Corner Cafe"}}), true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/onboarding?step=Store", rec.Header().Get("Location"))

	rec = app.do(postForm("/onboarding/account", url.Values{"name": {""}}), true)
	assert.Equal(t, "/onboarding?step=Account", rec.Header().Get("Location"))
	assert.Equal(t, signin.CodeUpdateUserError, errorContextOf(t, rec).ErrorName)
}

func TestOnboarding_SaveAccountShowsValidationMessage(t *testing.T) {
	app := newTestApp(t, nil)
	app.profiles.On("GetProfile", uint(1)).Return(&entity.User{ID: 1, Email: "owner@shop.com"}, nil)
	app.profiles.On("UpdateName", uint(1), "").Return(signin.NewAppErrorWithMessage(
		service.InvalidNameError, "Please enter a name between 1 and 100 characters.", apperrors.ErrValidation))

	rec := app.do(postForm("/onboarding/account", url.Values{"name": {""}}), true)
	require.Equal(t, "/onboarding?step=Account", rec.Header().Get("Location"))
	cookie := responseCookie(rec, middleware.ErrorContextCookie)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/onboarding?step=Account", nil)
	req.AddCookie(cookie)
	rec = app.do(req, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter a name between 1 and 100 characters.")
}

// ============================================================================
// Health
// ============================================================================

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := newTestApp(t, map[string]HealthCheck{"postgres": ok, "redis": ok})
	rec := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok","redis":"ok"}}`, rec.Body.String())

	app = newTestApp(t, map[string]HealthCheck{"postgres": ok, "redis": down})
	rec = app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"connection refused"}}`, rec.Body.String())
}
