package credentials

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	RoleName   string `json:"role_name"`
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User    *DirectoryUser
	Success bool
}

type RegisterUserHandler struct {
	repo      RepositoryManager
	directory Directory
	notifier  Notifier
	signer    TokenSigner
	logger    Logger
}

func NewRegisterUserHandler(repo RepositoryManager, directory Directory, notifier Notifier, signer TokenSigner, logger Logger) *RegisterUserHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &RegisterUserHandler{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		signer:    signer,
		logger:    logger,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)

	exists, err := h.directory.EmailExists(ctx, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	if exists {
		return ErrEmailTaken
	}

	if err := ValidatePasswordPolicy(event.Password); err != nil {
		return err
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user, err := h.directory.Create(ctx, DirectoryNewUser{
		Username:     getUsername(event.Username, email),
		Email:        email,
		PasswordHash: hash,
		FullName:     event.FullName,
		RoleName:     strings.ToLower(strings.TrimSpace(event.RoleName)),
		IsVerified:   false,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	token, err := h.signer.Sign(PurposeEmailVerification, IdentityFromDirectory(user))
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return issueStoredToken(ctx, tx, h.repo.Tokens(), h.signer, user, PurposeEmailVerification, token)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	// Delivery is best effort, the user can always request a resend
	if err := h.notifier.SendVerification(ctx, user.EmailAddr, user.Name, token); err != nil {
		h.logger.Warn("Failed to send verification email", "user_id", user.UID, "error", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{
			User:    user,
			Success: true,
		})
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
