package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Backend is the provider's account API.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*User, error)
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider: %d %s", e.Status, e.Message)
}

// IsInvalidCredentials reports whether err is a rejected password sign-in.
func IsInvalidCredentials(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized)
}

// GoTrue talks to a Supabase-compatible auth REST API.
type GoTrue struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	now     func() time.Time
}

// NewGoTrue builds a client for the project at projectURL.
func NewGoTrue(projectURL, apiKey string, timeout time.Duration) *GoTrue {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoTrue{
		baseURL: strings.TrimRight(projectURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		timeout: timeout,
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (r errorResponse) text() string {
	for _, candidate := range []string{r.ErrorDescription, r.Msg, r.Message, r.Error} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// SignInWithPassword exchanges credentials for a session.
func (g *GoTrue) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	body := fiber.Map{"email": email, "password": password}
	if err := g.do(ctx, fiber.MethodPost, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	return g.sessionFrom(resp)
}

// SignUp registers an account carrying metadata. Projects with e-mail
// confirmation answer with the bare user; others also issue a session, which
// is ignored here.
func (g *GoTrue) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	var raw json.RawMessage
	body := fiber.Map{"email": email, "password": password, "data": metadata}
	if err := g.do(ctx, fiber.MethodPost, "/signup", "", body, &raw); err != nil {
		return nil, err
	}

	var withSession tokenResponse
	if err := json.Unmarshal(raw, &withSession); err == nil && withSession.User != nil && withSession.User.ID != "" {
		return withSession.User, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("signup response carries no user")
	}
	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	return g.do(ctx, fiber.MethodPost, "/logout", accessToken, nil, nil)
}

// RefreshSession exchanges a refresh token for a new session.
func (g *GoTrue) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var resp tokenResponse
	body := fiber.Map{"refresh_token": refreshToken}
	if err := g.do(ctx, fiber.MethodPost, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return g.sessionFrom(resp)
}

// UpdateUser replaces the user metadata of the session owner.
func (g *GoTrue) UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*User, error) {
	var user User
	if err := g.do(ctx, fiber.MethodPut, "/user", accessToken, fiber.Map{"data": metadata}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GoTrue) sessionFrom(resp tokenResponse) (*Session, error) {
	if resp.AccessToken == "" || resp.User == nil || resp.User.ID == "" {
		return nil, errors.New("provider returned an incomplete session")
	}
	session := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         *resp.User,
	}
	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		session.ExpiresAt = g.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return session, nil
}

func (g *GoTrue) do(ctx context.Context, method, path, bearer string, body any, out any) error {
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(g.baseURL + path)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("build provider request: %w", err)
	}

	agent.Set("apikey", g.apiKey)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if bearer != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	if body != nil {
		agent.JSON(body)
	}
	agent.Timeout(timeout)

	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("call identity provider: %w", errors.Join(errs...))
	}

	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		var decoded errorResponse
		_ = json.Unmarshal(respBody, &decoded)
		message := decoded.text()
		if message == "" {
			message = http.StatusText(code)
		}
		return &APIError{Status: code, Message: message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
