package signin

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/metrics"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
)

const (
	SigninPath    = "/auth/signin"
	DashboardPath = "/dashboard"
)

// Credential is the email credential of the email-link provider.
type Credential struct {
	Email string
}

// InitiateResult tells the browser where to go after a successful initiation.
type InitiateResult struct {
	RedirectURL string
}

// Authenticator starts a sign-in with a provider. Failures are reported as
// *CallbackError or *AppError.
type Authenticator interface {
	Initiate(ctx context.Context, provider string, cred *Credential, callbackURL string) (*InitiateResult, error)
}

// SessionResolver returns the signed-in session of a request, or nil.
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*entity.Session, error)
}

// ProviderButton is one federated sign-in action.
type ProviderButton struct {
	ID    string
	Label string
}

// View is what the sign-in template renders.
type View struct {
	FormID        string
	Email         string
	CallbackError string
	FieldError    string
	Toast         string
	Submitting    bool
	Providers     []ProviderButton
}

// Result is the outcome of a page action: either a redirect or a view.
// ErrorContext, when set, replaces the shared error context.
type Result struct {
	Redirect     string
	Status       int
	View         *View
	ErrorContext *ErrorContext
}

// LoadRequest carries what the page reads on GET.
type LoadRequest struct {
	HTTP         *http.Request
	QueryError   string
	ErrorContext *ErrorContext
	FormID       string
}

// SubmitRequest carries the email form post.
type SubmitRequest struct {
	HTTP         *http.Request
	FormID       string
	Email        string
	ErrorContext *ErrorContext
}

// PageConfig wires the page's collaborators.
type PageConfig struct {
	Auth          Authenticator
	Sessions      SessionResolver
	Guard         Guard
	Forms         FormStateStore
	Validator     *EmailValidator
	Providers     []ProviderButton
	SubmitTimeout time.Duration
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// Page implements the sign-in page actions.
type Page struct {
	auth          Authenticator
	sessions      SessionResolver
	guard         Guard
	forms         FormStateStore
	notifier      *Notifier
	validator     *EmailValidator
	providers     []ProviderButton
	submitTimeout time.Duration
	metrics       *metrics.Metrics
	log           *zap.Logger
}

func NewPage(cfg PageConfig) *Page {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	v := cfg.Validator
	if v == nil {
		v = NewEmailValidator()
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Page{
		auth:          cfg.Auth,
		sessions:      cfg.Sessions,
		guard:         cfg.Guard,
		forms:         cfg.Forms,
		notifier:      NewNotifier(cfg.Forms),
		validator:     v,
		providers:     cfg.Providers,
		submitTimeout: timeout,
		metrics:       cfg.Metrics,
		log:           log.Named("SigninPage"),
	}
}

// gate redirects signed-in users away before any form state exists.
func (p *Page) gate(ctx context.Context, r *http.Request) *Result {
	session, err := p.sessions.Resolve(ctx, r)
	if err != nil {
		p.log.Warn("session resolve failed, rendering sign-in", zap.Error(err))
		return nil
	}
	if session == nil {
		return nil
	}
	return &Result{Redirect: DashboardPath, Status: http.StatusSeeOther}
}

// Load renders the sign-in form.
func (p *Page) Load(ctx context.Context, req LoadRequest) (*Result, error) {
	if res := p.gate(ctx, req.HTTP); res != nil {
		return res, nil
	}

	formID, err := p.ensureForm(ctx, req.FormID)
	if err != nil {
		return nil, err
	}

	view := p.newView(ctx, formID)
	view.CallbackError, _ = ResolveCallback(req.QueryError)
	p.toast(ctx, view, req.ErrorContext)

	return &Result{Status: http.StatusOK, View: view}, nil
}

// SubmitEmail validates the email and starts the email-link sign-in under the guard.
func (p *Page) SubmitEmail(ctx context.Context, req SubmitRequest) (*Result, error) {
	if res := p.gate(ctx, req.HTTP); res != nil {
		return res, nil
	}

	formID, err := p.ensureForm(ctx, req.FormID)
	if err != nil {
		return nil, err
	}

	if msg := p.validator.Validate(req.Email); msg != "" {
		view := p.newView(ctx, formID)
		view.Email = req.Email
		view.FieldError = msg
		p.toast(ctx, view, req.ErrorContext)
		return &Result{Status: http.StatusBadRequest, View: view}, nil
	}

	var initiated *InitiateResult
	err = p.guard.Do(ctx, formID, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.submitTimeout)
		defer cancel()
		var callErr error
		initiated, callErr = p.auth.Initiate(callCtx, entity.ProviderEmail, &Credential{Email: req.Email}, DashboardPath)
		return callErr
	})

	switch {
	case err == nil:
		return &Result{Redirect: initiated.RedirectURL, Status: http.StatusSeeOther}, nil
	case errors.Is(err, ErrSubmissionInFlight):
		p.metrics.GuardRejected()
		p.log.Debug("submission dropped, form is submitting", zap.String("form_id", formID))
		view := p.newView(ctx, formID)
		view.Email = req.Email
		view.Submitting = true
		return &Result{Status: http.StatusConflict, View: view}, nil
	}

	return p.fail(ctx, formID, req.Email, err), nil
}

// SignInWith starts a federated sign-in. It is not guarded by the submission guard.
func (p *Page) SignInWith(ctx context.Context, provider string) (*Result, error) {
	initiated, err := p.auth.Initiate(ctx, provider, nil, DashboardPath)
	if err == nil {
		return &Result{Redirect: initiated.RedirectURL, Status: http.StatusSeeOther}, nil
	}

	code, ec := Classify(err)
	p.log.Info("federated sign-in failed", zap.String("provider", provider), zap.Error(err))
	if code != "" {
		return &Result{Redirect: CallbackErrorURL(code), Status: http.StatusSeeOther}, nil
	}
	return &Result{Redirect: SigninPath, Status: http.StatusSeeOther, ErrorContext: ec}, nil
}

// fail renders an authentication failure: callback codes redirect with ?error=,
// application errors replace the error context and are toasted in place.
func (p *Page) fail(ctx context.Context, formID, email string, err error) *Result {
	code, ec := Classify(err)
	if code != "" {
		p.log.Info("email sign-in failed", zap.String("code", code), zap.Error(err))
		return &Result{Redirect: CallbackErrorURL(code), Status: http.StatusSeeOther}
	}

	p.log.Warn("email sign-in failed", zap.String("error_name", ec.ErrorName), zap.Error(err))
	view := p.newView(ctx, formID)
	view.Email = email
	p.toast(ctx, view, ec)
	return &Result{Status: http.StatusOK, View: view, ErrorContext: ec}
}

func (p *Page) newView(ctx context.Context, formID string) *View {
	view := &View{FormID: formID, Providers: p.providers}
	submitting, err := p.guard.Submitting(ctx, formID)
	if err != nil {
		p.log.Warn("failed to read submission state", zap.String("form_id", formID), zap.Error(err))
	}
	view.Submitting = submitting
	return view
}

// toast resolves the interactive error and shows it once per distinct value.
func (p *Page) toast(ctx context.Context, view *View, ec *ErrorContext) {
	msg, ok := Resolve(ec)
	if !ok {
		return
	}
	show, err := p.notifier.Notify(ctx, view.FormID, ec.ErrorName, msg)
	if err != nil {
		p.log.Warn("notifier failed", zap.String("form_id", view.FormID), zap.Error(err))
		return
	}
	if show {
		p.metrics.ErrorNotified(ec.ErrorName)
		view.Toast = msg
	}
}

// ensureForm reuses a known form id or allocates a new form instance.
func (p *Page) ensureForm(ctx context.Context, formID string) (string, error) {
	if formID != "" {
		_, err := p.forms.Load(ctx, formID)
		if err == nil {
			return formID, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return "", err
		}
	}
	formID = uuid.NewString()
	if err := p.forms.Save(ctx, formID, &FormState{CreatedAt: time.Now()}); err != nil {
		return "", err
	}
	return formID, nil
}

// CallbackErrorURL builds the sign-in URL carrying a callback error code.
func CallbackErrorURL(code string) string {
	return SigninPath + "?error=" + url.QueryEscape(code)
}
