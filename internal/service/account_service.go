package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/shell"
	util "github.com/artisansflow/portal/pkg/util"
)

const minPasswordLength = 6

// AccountProfiles is the profile access needed by account flows.
type AccountProfiles interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Ensure(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	UpdateDisplay(ctx context.Context, id string, display domain.ProfileDisplay) (*domain.Profile, error)
}

// ActivityRecorder stores sign-ins.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, at time.Time) error
}

// AccountService coordinates sign-in, sign-up, sign-out and settings.
type AccountService struct {
	backend    identity.Backend
	profiles   AccountProfiles
	activity   ActivityRecorder
	routes     guard.RouteTable
	renderWait time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// AccountDependencies encapsulates collaborators of the account service.
type AccountDependencies struct {
	Backend    identity.Backend
	Profiles   AccountProfiles
	Activity   ActivityRecorder
	Routes     guard.RouteTable
	RenderWait time.Duration
	Logger     *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		backend:    deps.Backend,
		profiles:   deps.Profiles,
		activity:   deps.Activity,
		routes:     deps.Routes,
		renderWait: deps.RenderWait,
		logger:     logger,
		now:        time.Now,
	}
}

// SignInInput carries the sign-in form.
type SignInInput struct {
	Email      string
	Password   string
	RedirectTo string
}

// SignUpInput carries the sign-up form.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Company  string
	Plan     domain.Role
}

// AuthResult tells the caller where to send the browser next.
type AuthResult struct {
	Session  *identity.Session
	Role     domain.Role
	Location string
}

// SignIn authenticates the browser context. The destination is the requested
// return path when it is safe, otherwise the home route of the resolved role.
func (s *AccountService) SignIn(ctx context.Context, bc *shell.Context, in SignInInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	details := map[string]any{}
	if email == "" {
		details["email"] = "required"
	}
	if in.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return nil, util.NewValidationError("email and password are required", details)
	}

	sess, err := bc.Client.SignInWithPassword(ctx, email, in.Password)
	if err != nil {
		return nil, providerError(err, "invalid email or password")
	}

	if err := s.activity.Record(ctx, sess.User.ID, s.now()); err != nil {
		s.logger.Warn("failed to record sign-in activity", zap.String("user_id", sess.User.ID), zap.Error(err))
	}

	role := s.awaitRole(ctx, bc, sess)
	location := guard.SafeReturnPath(in.RedirectTo, "")
	if location == "" || s.routes.Classify(location) == guard.PathAuth {
		location = domain.HomeRouteFor(role)
	}
	return &AuthResult{Session: sess, Role: role, Location: location}, nil
}

// awaitRole waits briefly for the context's resolver and falls back to the
// metadata role.
func (s *AccountService) awaitRole(ctx context.Context, bc *shell.Context, sess *identity.Session) domain.Role {
	waitCtx, cancel := context.WithTimeout(ctx, s.renderWait)
	defer cancel()
	state, err := bc.Resolver.Wait(waitCtx)
	if err == nil && state.HasSession() && state.UserID() == sess.User.ID {
		return state.Role
	}
	return domain.NormalizeRole(sess.User.RawRole())
}

// SignUp registers an account on a sign-up plan and seeds its profile.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	details := map[string]any{}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "must be a valid address"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = "must be at least 6 characters"
	}
	plan := domain.Role(strings.ToUpper(strings.TrimSpace(string(in.Plan))))
	if !domain.IsSignupRole(plan) {
		details["plan"] = "must be one of the sign-up plans"
	}
	if len(details) > 0 {
		return nil, util.NewValidationError("invalid sign-up request", details)
	}

	fullName := strings.TrimSpace(in.FullName)
	company := strings.TrimSpace(in.Company)
	user, err := s.backend.SignUp(ctx, email, in.Password, map[string]any{
		identity.MetadataRole:     string(plan),
		identity.MetadataFullName: fullName,
		identity.MetadataCompany:  company,
	})
	if err != nil {
		return nil, providerError(err, "unable to create the account")
	}

	if _, err := s.profiles.Ensure(ctx, domain.Profile{ID: user.ID, FullName: fullName, Company: company, Role: plan}); err != nil {
		s.logger.Warn("failed to create profile at sign-up", zap.String("user_id", user.ID), zap.Error(err))
	}

	return &AuthResult{Role: plan, Location: s.routes.SignInPath + "?registered=1"}, nil
}

// SignOut revokes the session and clears the browser context. Revocation
// failures are logged; the context is signed out regardless.
func (s *AccountService) SignOut(ctx context.Context, bc *shell.Context) *AuthResult {
	if err := bc.Client.SignOut(ctx); err != nil {
		s.logger.Warn("provider sign-out failed", zap.String("context_id", bc.ID), zap.Error(err))
	}
	return &AuthResult{Location: s.routes.SignInPath}
}

// Refresh exchanges the context's refresh token for a new session.
func (s *AccountService) Refresh(ctx context.Context, bc *shell.Context) (*identity.Session, error) {
	sess, err := bc.Client.RefreshSession(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return nil, util.NewUnauthorized("no session to refresh")
		}
		return nil, providerError(err, "session expired")
	}
	return sess, nil
}

// Settings returns the editable attributes of the signed-in tenant. A missing
// profile yields the attributes carried in the provider metadata.
func (s *AccountService) Settings(ctx context.Context, sess *identity.Session) (domain.ProfileDisplay, error) {
	profile, err := s.profiles.GetByID(ctx, sess.User.ID)
	switch {
	case err == nil:
		return domain.ProfileDisplay{FullName: profile.FullName, Company: profile.Company, LogoURL: profile.LogoURL}, nil
	case errors.Is(err, domain.ErrProfileNotFound):
		return domain.ProfileDisplay{
			FullName: sess.User.MetadataString(identity.MetadataFullName),
			Company:  sess.User.MetadataString(identity.MetadataCompany),
		}, nil
	default:
		return domain.ProfileDisplay{}, util.NewUpstreamError("unable to load settings", 0, err)
	}
}

// SaveSettings stores the display attributes and re-resolves the context so
// the change is visible on the next render.
func (s *AccountService) SaveSettings(ctx context.Context, bc *shell.Context, display domain.ProfileDisplay) (*domain.Profile, error) {
	sess := bc.Client.CurrentSession()
	if sess == nil {
		return nil, util.NewUnauthorized("sign in to edit settings")
	}

	display.FullName = strings.TrimSpace(display.FullName)
	display.Company = strings.TrimSpace(display.Company)
	display.LogoURL = strings.TrimSpace(display.LogoURL)
	if err := validateDisplay(display); err != nil {
		return nil, err
	}

	profile, err := s.profiles.UpdateDisplay(ctx, sess.User.ID, display)
	if err != nil {
		return nil, util.NewUpstreamError("unable to save settings", 0, err)
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.renderWait)
	defer cancel()
	if _, err := bc.Resolver.Refresh(refreshCtx); err != nil {
		s.logger.Debug("settings saved before resolution settled", zap.String("user_id", sess.User.ID), zap.Error(err))
	}
	return profile, nil
}

func validateDisplay(display domain.ProfileDisplay) error {
	details := map[string]any{}
	if len(display.FullName) > 120 {
		details["full_name"] = "must be at most 120 characters"
	}
	if len(display.Company) > 120 {
		details["company"] = "must be at most 120 characters"
	}
	if display.LogoURL != "" {
		u, err := url.Parse(display.LogoURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			details["logo_url"] = "must be an http(s) URL"
		}
	}
	if len(details) > 0 {
		return util.NewValidationError("invalid settings", details)
	}
	return nil
}

// providerError maps identity provider failures onto domain errors.
func providerError(err error, rejected string) error {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) {
		switch {
		case identity.IsInvalidCredentials(err):
			return util.NewUnauthorized(rejected)
		case apiErr.Status == 422:
			return util.NewValidationError(apiErr.Message, nil)
		case apiErr.Status == 429:
			return util.NewTooManyRequests(apiErr.Message)
		}
		return util.NewUpstreamError("identity provider error", 0, err)
	}
	return util.NewUpstreamError("identity provider unavailable", 0, err)
}
