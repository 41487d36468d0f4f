package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/goliatone/go-errors"
)

// Notifier delivers flow emails through the notification service
type Notifier interface {
	SendVerification(ctx context.Context, email, username, token string) error
	SendPasswordReset(ctx context.Context, user *DirectoryUser, token string) error
}

// NotifierConfig holds HTTPNotifier options
type NotifierConfig struct {
	BaseURL     string
	FrontendURL string
	ServiceKey  string
	ServiceName string
	HTTPClient  *http.Client
	Logger      Logger
}

// HTTPNotifier posts delivery requests to the notification service.
// Link URLs are built here so the notification service stays a dumb
// template renderer with no knowledge of token semantics.
type HTTPNotifier struct {
	config     NotifierConfig
	httpClient *http.Client
	logger     Logger
}

var _ Notifier = (*HTTPNotifier)(nil)

func NewHTTPNotifier(cfg NotifierConfig) *HTTPNotifier {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: collaboratorTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	return &HTTPNotifier{
		config:     cfg,
		httpClient: client,
		logger:     logger,
	}
}

func (n *HTTPNotifier) SendVerification(ctx context.Context, email, username, token string) error {
	if email == "" || token == "" {
		return errors.New("email and token are required", errors.CategoryBadInput)
	}

	link := n.config.FrontendURL + "/api/v1/auth/verify-email?token=" + url.QueryEscape(token)

	return n.post(ctx, "/notifications/email-verification", map[string]any{
		"email":    email,
		"username": username,
		"link":     link,
	})
}

func (n *HTTPNotifier) SendPasswordReset(ctx context.Context, user *DirectoryUser, token string) error {
	if user == nil || user.EmailAddr == "" || token == "" {
		return errors.New("user and token are required", errors.CategoryBadInput)
	}

	link := n.config.FrontendURL + "/api/v1/auth/reset-password?token=" +
		url.QueryEscape(token) + "&id=" + url.QueryEscape(user.UID)

	return n.post(ctx, "/notifications/password-reset", map[string]any{
		"email":    user.EmailAddr,
		"username": user.Name,
		"link":     link,
	})
}

func (n *HTTPNotifier) post(ctx context.Context, path string, payload map[string]any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode notification request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build notification request")
	}

	req.Header.Set("Content-Type", "application/json")
	if n.config.ServiceKey != "" {
		req.Header.Set(HeaderServiceKey, n.config.ServiceKey)
		req.Header.Set(HeaderServiceName, n.config.ServiceName)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Notifier request failed", "path", path, "error", err)
		return errors.Wrap(err, ErrUpstreamUnavailable.Category, ErrUpstreamUnavailable.Message).
			WithTextCode(ErrUpstreamUnavailable.TextCode)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := "notification request rejected"
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		message = env.Message
	}

	if resp.StatusCode >= 500 {
		n.logger.Error("Notifier returned server error", "status", resp.StatusCode, "message", message)
		return errors.Wrap(ErrUpstreamUnavailable, errors.CategoryOperation, message)
	}

	return errors.New(message, errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest)
}

// NoopNotifier drops every notification, useful in tests and local
// development without a notification service
type NoopNotifier struct {
	Logger Logger
}

var _ Notifier = (*NoopNotifier)(nil)

func (n NoopNotifier) SendVerification(_ context.Context, email, _, _ string) error {
	if n.Logger != nil {
		n.Logger.Info("Skipping verification email", "email", email)
	}
	return nil
}

func (n NoopNotifier) SendPasswordReset(_ context.Context, user *DirectoryUser, _ string) error {
	if n.Logger != nil && user != nil {
		n.Logger.Info("Skipping password reset email", "email", user.EmailAddr)
	}
	return nil
}
