package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goliatone/go-errors"
)

// Directory is the external user store. This service owns credentials
// and sessions only, user records live behind this boundary.
type Directory interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (*DirectoryUser, error)
	GetByID(ctx context.Context, id string) (*DirectoryUser, error)
	GetPasswordHash(ctx context.Context, email string) (string, error)
	Create(ctx context.Context, user DirectoryNewUser) (*DirectoryUser, error)
	Update(ctx context.Context, id string, patch DirectoryPatch) error
}

// DirectoryUser is the subset of the directory's user record this
// service works with
type DirectoryUser struct {
	UID           string     `json:"id"`
	Name          string     `json:"username"`
	FullName      string     `json:"fullName,omitempty"`
	EmailAddr     string     `json:"email"`
	UserRole      string     `json:"role"`
	EmailVerified bool       `json:"isEmailVerified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

// DirectoryNewUser is the payload for creating a directory record
type DirectoryNewUser struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password"`
	FullName     string `json:"fullName,omitempty"`
	RoleName     string `json:"roleName,omitempty"`
	IsVerified   bool   `json:"isEmailVerified"`
}

// DirectoryPatch is a partial update, nil fields are left untouched
type DirectoryPatch struct {
	PasswordHash  *string    `json:"passwordHash,omitempty"`
	EmailVerified *bool      `json:"isEmailVerified,omitempty"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

// DirectoryConfig holds HTTPDirectory options
type DirectoryConfig struct {
	BaseURL     string
	ServiceKey  string
	ServiceName string
	HTTPClient  *http.Client
	Logger      Logger
}

// HTTPDirectory talks to the user service over its REST API. Every
// request carries the shared service key so the peer's trust gate
// admits it.
type HTTPDirectory struct {
	config     DirectoryConfig
	httpClient *http.Client
	logger     Logger
}

var _ Directory = (*HTTPDirectory)(nil)

// collaboratorTimeout caps calls to the directory and notifier. Both
// sit on the request path, a slow peer should fail fast.
const collaboratorTimeout = 5 * time.Second

// envelope is the wire format every collaborator speaks
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewHTTPDirectory(cfg DirectoryConfig) *HTTPDirectory {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: collaboratorTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	return &HTTPDirectory{
		config:     cfg,
		httpClient: client,
		logger:     logger,
	}
}

func (d *HTTPDirectory) EmailExists(ctx context.Context, email string) (bool, error) {
	var payload struct {
		Exists bool `json:"exists"`
	}

	path := "/users/check-email?email=" + url.QueryEscape(NormalizeEmail(email))
	if err := d.get(ctx, path, &payload); err != nil {
		return false, err
	}

	return payload.Exists, nil
}

func (d *HTTPDirectory) GetByEmail(ctx context.Context, email string) (*DirectoryUser, error) {
	user := &DirectoryUser{}
	path := "/users/get-by-email?email=" + url.QueryEscape(NormalizeEmail(email))
	if err := d.get(ctx, path, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (d *HTTPDirectory) GetByID(ctx context.Context, id string) (*DirectoryUser, error) {
	user := &DirectoryUser{}
	if err := d.get(ctx, "/users/"+url.PathEscape(id), user); err != nil {
		return nil, err
	}
	return user, nil
}

func (d *HTTPDirectory) GetPasswordHash(ctx context.Context, email string) (string, error) {
	var payload struct {
		PasswordHash string `json:"passwordHash"`
	}

	path := "/users/get-password-hash?email=" + url.QueryEscape(NormalizeEmail(email))
	if err := d.get(ctx, path, &payload); err != nil {
		return "", err
	}

	return payload.PasswordHash, nil
}

func (d *HTTPDirectory) Create(ctx context.Context, user DirectoryNewUser) (*DirectoryUser, error) {
	created := &DirectoryUser{}
	if err := d.send(ctx, http.MethodPost, "/users", user, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (d *HTTPDirectory) Update(ctx context.Context, id string, patch DirectoryPatch) error {
	return d.send(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), patch, nil)
}

func (d *HTTPDirectory) get(ctx context.Context, path string, out any) error {
	return d.send(ctx, http.MethodGet, path, nil, out)
}

func (d *HTTPDirectory) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode directory request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.config.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build directory request")
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.config.ServiceKey != "" {
		req.Header.Set(HeaderServiceKey, d.config.ServiceKey)
		req.Header.Set(HeaderServiceName, d.config.ServiceName)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("Directory request failed", "method", method, "path", path, "error", err)
		return errors.Wrap(err, ErrUpstreamUnavailable.Category, ErrUpstreamUnavailable.Message).
			WithTextCode(ErrUpstreamUnavailable.TextCode)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read directory response")
	}

	if err := d.checkStatus(resp.StatusCode, raw); err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to decode directory response")
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("directory response has no data", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to decode directory payload")
	}

	return nil
}

func (d *HTTPDirectory) checkStatus(status int, raw []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	message := "directory request rejected"
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		message = env.Message
	}

	switch {
	case status == http.StatusNotFound:
		return errors.New(message, errors.CategoryNotFound).
			WithCode(errors.CodeNotFound)
	case status == http.StatusConflict:
		return errors.New(message, errors.CategoryConflict).
			WithCode(errors.CodeConflict)
	case status >= 500:
		d.logger.Error("Directory returned server error", "status", status, "message", message)
		return errors.Wrap(ErrUpstreamUnavailable, errors.CategoryOperation, message)
	default:
		return errors.New(message, errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{
				"status": fmt.Sprintf("%d", status),
			})
	}
}
