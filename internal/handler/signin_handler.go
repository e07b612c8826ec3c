package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/middleware"
	"github.com/yoshi-pos/pos-web/internal/service"
	"github.com/yoshi-pos/pos-web/internal/signin"
	"github.com/yoshi-pos/pos-web/internal/web"
	"github.com/yoshi-pos/pos-web/pkg/auth/manager"
)

// FormCookie keeps the sign-in form instance between renders.
const FormCookie = "pos_signin_form"

// CallbackAuthenticator completes provider callbacks.
type CallbackAuthenticator interface {
	HandleCallback(ctx context.Context, provider string, params url.Values, client service.ClientInfo) (*service.CallbackResult, error)
}

// SessionTerminator ends browser sessions.
type SessionTerminator interface {
	Destroy(ctx context.Context, r *http.Request) error
	Cookies() *manager.CookieManager
}

// SigninHandler обрабатывает страницу входа и callback-и провайдеров
type SigninHandler struct {
	page     *signin.Page
	auth     CallbackAuthenticator
	sessions SessionTerminator
	errors   *middleware.ErrorContextStore
	secure   bool
	log      *zap.Logger
}

// NewSigninHandler создает обработчик входа
func NewSigninHandler(
	page *signin.Page,
	auth CallbackAuthenticator,
	sessions SessionTerminator,
	errors *middleware.ErrorContextStore,
	secure bool,
	log *zap.Logger,
) *SigninHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SigninHandler{
		page:     page,
		auth:     auth,
		sessions: sessions,
		errors:   errors,
		secure:   secure,
		log:      log.Named("SigninHandler"),
	}
}

// ShowSignin GET /auth/signin
func (h *SigninHandler) ShowSignin(c *gin.Context) {
	formID, _ := c.Cookie(FormCookie)
	res, err := h.page.Load(c.Request.Context(), signin.LoadRequest{
		HTTP:         c.Request,
		QueryError:   c.Query("error"),
		ErrorContext: middleware.GetErrorContext(c),
		FormID:       formID,
	})
	h.respond(c, res, err)
}

// SubmitEmail POST /auth/signin/email
func (h *SigninHandler) SubmitEmail(c *gin.Context) {
	formID := c.PostForm("form_id")
	if formID == "" {
		formID, _ = c.Cookie(FormCookie)
	}
	res, err := h.page.SubmitEmail(c.Request.Context(), signin.SubmitRequest{
		HTTP:         c.Request,
		FormID:       formID,
		Email:        c.PostForm("email"),
		ErrorContext: middleware.GetErrorContext(c),
	})
	h.respond(c, res, err)
}

// SignInWith POST /auth/signin/:provider
func (h *SigninHandler) SignInWith(c *gin.Context) {
	res, err := h.page.SignInWith(c.Request.Context(), c.Param("provider"))
	h.respond(c, res, err)
}

// Callback GET /auth/callback/:provider
func (h *SigninHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	res, err := h.auth.HandleCallback(c.Request.Context(), provider, c.Request.URL.Query(), service.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		code, ec := signin.Classify(err)
		if code != "" {
			c.Redirect(http.StatusFound, signin.CallbackErrorURL(code))
			return
		}
		h.errors.Set(c, ec)
		c.Redirect(http.StatusFound, signin.SigninPath)
		return
	}

	h.sessions.Cookies().SetSessionCookie(c.Writer, res.Token, res.Session.ExpiresAt)
	h.errors.Clear(c)
	h.clearFormCookie(c)
	c.Redirect(http.StatusFound, res.RedirectURL)
}

// VerifyRequest GET /auth/verify-request
func (h *SigninHandler) VerifyRequest(c *gin.Context) {
	c.HTML(http.StatusOK, web.PageVerifyRequest, web.PageData{Title: "Check your email"})
}

// SignOut POST /auth/signout
func (h *SigninHandler) SignOut(c *gin.Context) {
	if err := h.sessions.Destroy(c.Request.Context(), c.Request); err != nil {
		h.log.Warn("failed to destroy session", zap.Error(err))
	}
	h.sessions.Cookies().ClearSessionCookie(c.Writer)
	c.Redirect(http.StatusSeeOther, signin.SigninPath)
}

func (h *SigninHandler) respond(c *gin.Context, res *signin.Result, err error) {
	if err != nil {
		h.log.Error("sign-in page failed", zap.Error(err))
		c.HTML(http.StatusInternalServerError, web.PageError, web.PageData{
			Title:   "Error",
			Content: signin.GenericErrorMessage,
		})
		return
	}
	if res.ErrorContext != nil {
		h.errors.Set(c, res.ErrorContext)
	}
	if res.Redirect != "" {
		c.Redirect(res.Status, res.Redirect)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     FormCookie,
		Value:    res.View.FormID,
		Path:     signin.SigninPath,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.HTML(res.Status, web.PageSignin, web.PageData{
		Title:   "Sign in",
		Toast:   res.View.Toast,
		Content: res.View,
	})
}

func (h *SigninHandler) clearFormCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     FormCookie,
		Path:     signin.SigninPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
	})
}
