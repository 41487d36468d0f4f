package credentials

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the credential endpoints on the given
// router. The validate-token route is meant for sibling services, wrap
// it with the service gate middleware through WithServiceGate.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	limited := func(h router.HandlerFunc) router.HandlerFunc {
		if controller.Limiter == nil {
			return h
		}
		return controller.Limiter(h)
	}

	gated := func(h router.HandlerFunc) router.HandlerFunc {
		if controller.ServiceGate == nil {
			return h
		}
		return controller.ServiceGate(h)
	}

	mount := func(name, path string, handler router.HandlerFunc) {
		if routeVerbs[name] == http.MethodGet {
			app.Get(path, handler).SetName(name)
			return
		}
		app.Post(path, handler).SetName(name)
	}

	mount("auth.register", controller.Routes.Register, limited(controller.Register))
	mount("auth.login", controller.Routes.Login, limited(controller.Login))
	mount("auth.logout", controller.Routes.Logout, controller.Logout)
	mount("auth.refresh", controller.Routes.RefreshToken, limited(controller.RefreshToken))

	mount("auth.verify-email", controller.Routes.VerifyEmail, controller.VerifyEmail)
	mount("auth.resend-verification", controller.Routes.ResendVerification, limited(controller.ResendVerification))

	mount("auth.forgot-password", controller.Routes.ForgotPassword, limited(controller.ForgotPassword))
	mount("auth.reset-password", controller.Routes.ResetPassword, limited(controller.ResetPassword))

	mount("auth.validate-token", controller.Routes.ValidateToken, gated(controller.ValidateToken))
}

// routeVerbs pins each route to its HTTP method. Refresh and
// validate-token are GETs: the credential travels in a cookie or the
// Authorization header, never in a body.
var routeVerbs = map[string]string{
	"auth.register":            http.MethodPost,
	"auth.login":               http.MethodPost,
	"auth.logout":              http.MethodPost,
	"auth.refresh":             http.MethodGet,
	"auth.verify-email":        http.MethodGet,
	"auth.resend-verification": http.MethodPost,
	"auth.forgot-password":     http.MethodPost,
	"auth.reset-password":      http.MethodPost,
	"auth.validate-token":      http.MethodGet,
}

type AuthControllerRoutes struct {
	Register           string
	Login              string
	Logout             string
	RefreshToken       string
	VerifyEmail        string
	ResendVerification string
	ForgotPassword     string
	ResetPassword      string
	ValidateToken      string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       Authenticator
	Signer       TokenSigner
	Directory    Directory
	Notifier     Notifier
	Config       Config
	Activity     ActivitySink
	Limiter      router.MiddlewareFunc
	ServiceGate  router.MiddlewareFunc
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:           "/register",
			Login:              "/login",
			Logout:             "/logout",
			RefreshToken:       "/refresh-token",
			VerifyEmail:        "/verify-email",
			ResendVerification: "/resend-verification",
			ForgotPassword:     "/forgot-password",
			ResetPassword:      "/reset-password",
			ValidateToken:      "/validate-token",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Signer == nil {
		panic("Missing TokenSigner in auth controller...")
	}

	if c.Directory == nil {
		panic("Missing Directory in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Notifier == nil {
		c.Notifier = NoopNotifier{Logger: c.Logger}
	}

	c.Activity = normalizeActivitySink(c.Activity)

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return respondError(ctx, c.Logger, err)
		}
	}

	return c
}

func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithRepositoryManager(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithTokenSigner(signer TokenSigner) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Signer = signer
		return c
	}
}

func WithDirectory(directory Directory) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Directory = directory
		return c
	}
}

func WithNotifier(notifier Notifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = notifier
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = sink
		return c
	}
}

func WithAuthConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithLimiter(limiter router.MiddlewareFunc) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limiter = limiter
		return c
	}
}

func WithServiceGate(gate router.MiddlewareFunc) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ServiceGate = gate
		return c
	}
}

// RegisterRequest payload
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	FullName string `form:"full_name" json:"fullName"`
	RoleName string `form:"role_name" json:"roleName"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.FullName, validation.Length(0, 200)),
	)
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return a.badRequest(ctx, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return a.validationError(ctx, err)
	}

	var resp *RegisterUserResponse
	msg := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
		RoleName: payload.RoleName,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	}

	handler := NewRegisterUserHandler(a.Repo, a.Directory, a.Notifier, a.Signer, a.Logger)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var user *DirectoryUser
	if resp != nil {
		user = resp.User
	}

	return ctx.JSON(router.StatusCreated, successResponse(
		"User registered successfully. Please verify your email.",
		map[string]any{"user": user},
	))
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	device := DeviceInfo{
		UserAgent: ctx.GetString("User-Agent", ""),
		IP:        ctx.IP(),
	}

	result, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password, device)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	setRefreshCookie(ctx, a.Config, result.RefreshToken, result.RefreshExpiresAt)

	return ctx.JSON(router.StatusOK, successResponse("Login successful", map[string]any{
		"user":        result.User,
		"accessToken": result.AccessToken,
	}))
}

// Logout revokes the session named by the refresh cookie. It succeeds
// even without a cookie, a logged out client stays logged out.
func (a *AuthController) Logout(ctx router.Context) error {
	refreshToken := ctx.Cookies(a.Config.GetCookieName())

	if err := a.Auther.Logout(ctx.Context(), refreshToken); err != nil {
		a.Logger.Warn("Logout revoke failed", "error", err)
	}

	clearRefreshCookie(ctx, a.Config)

	return ctx.JSON(router.StatusOK, successResponse("Logout successful", nil))
}

func (a *AuthController) RefreshToken(ctx router.Context) error {
	refreshToken := ctx.Cookies(a.Config.GetCookieName())
	if refreshToken == "" {
		return a.ErrorHandler(ctx, ErrSessionRevoked)
	}

	accessToken, err := a.Auther.Refresh(ctx.Context(), refreshToken)
	if err != nil {
		clearRefreshCookie(ctx, a.Config)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, successResponse("Token refreshed", map[string]any{
		"accessToken": accessToken,
	}))
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	token := ctx.Query("token", "")
	if token == "" {
		return a.badRequest(ctx, "Verification token is required")
	}

	handler := NewVerifyEmailHandler(a.Repo, a.Directory, a.Signer, a.Logger).
		WithActivitySink(a.Activity)
	msg := VerifyEmailMessage{Token: token}

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.tokenFlowError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, successResponse("Email verified successfully", nil))
}

// EmailRequest payload for resend and forgot password
type EmailRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendVerification(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	handler := NewResendVerificationHandler(a.Repo, a.Directory, a.Notifier, a.Signer, a.Logger)
	msg := ResendVerificationMessage{Email: payload.Email}

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, successResponse("Verification email sent successfully", nil))
}

func (a *AuthController) ForgotPassword(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Directory, a.Notifier, a.Signer, a.Logger).
		WithActivitySink(a.Activity)
	msg := InitializePasswordResetMessage{Email: payload.Email}

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, successResponse("Reset link sent", nil))
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AuthController) ResetPassword(ctx router.Context) error {
	id := ctx.Query("id", "")
	token := ctx.Query("token", "")

	if id == "" || token == "" {
		return a.badRequest(ctx, "ID and token are required")
	}

	payload := new(ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	handler := NewFinalizePasswordResetHandler(a.Repo, a.Directory, a.Signer, a.Logger).
		WithActivitySink(a.Activity)
	msg := FinalizePasswordResetMessage{
		UserID:   id,
		Token:    token,
		Password: payload.Password,
	}

	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.tokenFlowError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, successResponse("Password updated successfully", nil))
}

// ValidateToken checks the access credential carried in the
// Authorization header. Sibling services call this on every request
// they need to authenticate.
func (a *AuthController) ValidateToken(ctx router.Context) error {
	raw := extractBearer(ctx.GetString(router.HeaderAuthorization, ""))
	if raw == "" {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	claims, err := a.Auther.ValidateAccess(raw)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, successResponse("Token is valid", map[string]any{
		"user": map[string]any{
			"id":    claims.UserID(),
			"email": claims.EmailAddress(),
			"role":  claims.Role(),
		},
	}))
}

func (a *AuthController) badRequest(ctx router.Context, message string) error {
	return ctx.JSON(router.StatusBadRequest, APIResponse{
		Status:  "error",
		Message: message,
	})
}

// tokenFlowError collapses every token failure kind into the same
// generic 400 response. Distinct statuses for not-found, consumed, and
// expired would let callers probe token state.
func (a *AuthController) tokenFlowError(ctx router.Context, err error) error {
	if errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenAlreadyUsed) ||
		IsTokenExpiredError(err) ||
		IsMalformedError(err) {
		return ctx.JSON(router.StatusBadRequest, APIResponse{
			Status:  "error",
			Message: "Invalid or expired token",
		})
	}
	return a.ErrorHandler(ctx, err)
}

func (a *AuthController) validationError(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, APIResponse{
		Status:  "error",
		Message: "Validation failed",
		Data:    FormatValidationErrorToMap(err),
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func extractBearer(header string) string {
	const scheme = "Bearer "
	if len(header) > len(scheme) && header[:len(scheme)] == scheme {
		return header[len(scheme):]
	}
	return ""
}
