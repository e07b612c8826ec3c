package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/middleware"
	"github.com/yoshi-pos/pos-web/internal/signin"
	"github.com/yoshi-pos/pos-web/internal/statusbar"
	"github.com/yoshi-pos/pos-web/internal/web"
	"github.com/yoshi-pos/pos-web/pkg/auth/manager"
)

// OnboardingSteps: шаги мастера настройки магазина
var OnboardingSteps = []string{"Account", "Store", "Menu", "Payment", "Done"}

// ProfileService is what the back office pages need from the user service.
type ProfileService interface {
	GetProfile(userID uint) (*entity.User, error)
	UpdateName(userID uint, name string) error
}

// OnboardingHandler обрабатывает dashboard и мастер онбординга
type OnboardingHandler struct {
	users   ProfileService
	errors  *middleware.ErrorContextStore
	cookies *manager.CookieManager
	log     *zap.Logger
}

func NewOnboardingHandler(users ProfileService, errors *middleware.ErrorContextStore, cookies *manager.CookieManager, log *zap.Logger) *OnboardingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OnboardingHandler{users: users, errors: errors, cookies: cookies, log: log.Named("OnboardingHandler")}
}

type onboardingView struct {
	Steps   []statusbar.Node
	Current string
	Next    string
	Name    string
}

// Dashboard GET /dashboard
func (h *OnboardingHandler) Dashboard(c *gin.Context) {
	session := middleware.GetSession(c)
	user, ok := h.profile(c, session)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, web.PageDashboard, web.PageData{
		Title:   "Dashboard",
		Toast:   h.takeToast(c),
		Session: session,
		Content: gin.H{"Name": user.DisplayName(), "Email": user.Email},
	})
}

// Onboarding GET /onboarding?step=
func (h *OnboardingHandler) Onboarding(c *gin.Context) {
	session := middleware.GetSession(c)
	user, ok := h.profile(c, session)
	if !ok {
		return
	}

	current := c.Query("step")
	if current == "" {
		current = OnboardingSteps[0]
	}
	view := onboardingView{
		Steps:   statusbar.Render(OnboardingSteps, current),
		Current: current,
		Name:    user.Name,
	}
	if i := statusbar.IndexOf(OnboardingSteps, current); i >= 0 && i+1 < len(OnboardingSteps) {
		view.Next = OnboardingSteps[i+1]
	}

	c.HTML(http.StatusOK, web.PageOnboarding, web.PageData{
		Title:   "Set up your store",
		Toast:   h.takeToast(c),
		Session: session,
		Content: view,
	})
}

// SaveAccount POST /onboarding/account
func (h *OnboardingHandler) SaveAccount(c *gin.Context) {
	session := middleware.GetSession(c)
	if err := h.users.UpdateName(session.UserID, c.PostForm("name")); err != nil {
		_, ec := signin.Classify(err)
		h.errors.Set(c, ec)
		c.Redirect(http.StatusSeeOther, onboardingURL(OnboardingSteps[0]))
		return
	}
	c.Redirect(http.StatusSeeOther, onboardingURL(OnboardingSteps[1]))
}

// profile loads the session user. A user that no longer exists ends the session.
func (h *OnboardingHandler) profile(c *gin.Context, session *entity.Session) (*entity.User, bool) {
	user, err := h.users.GetProfile(session.UserID)
	if err == nil {
		return user, true
	}
	code, ec := signin.Classify(err)
	h.log.Warn("failed to load profile", zap.Uint("user_id", session.UserID), zap.Error(err))
	if code != "" {
		c.Redirect(http.StatusSeeOther, signin.CallbackErrorURL(code))
		return nil, false
	}
	if ec.ErrorName == signin.CodeUnauthorized {
		h.cookies.ClearSessionCookie(c.Writer)
	}
	h.errors.Set(c, ec)
	c.Redirect(http.StatusSeeOther, signin.SigninPath)
	return nil, false
}

// takeToast shows the pending error context once and clears it.
func (h *OnboardingHandler) takeToast(c *gin.Context) string {
	ec := middleware.GetErrorContext(c)
	if ec == nil {
		return ""
	}
	h.errors.Clear(c)
	msg, _ := signin.Resolve(ec)
	return msg
}

func onboardingURL(step string) string {
	return "/onboarding?step=" + url.QueryEscape(step)
}
