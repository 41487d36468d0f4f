package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailResponse struct {
	User    *DirectoryUser
	Success bool
}

// VerifyEmailHandler consumes an email verification token and marks the
// directory record verified
type VerifyEmailHandler struct {
	repo      RepositoryManager
	directory Directory
	signer    TokenSigner
	logger    Logger
	sink      ActivitySink
}

func NewVerifyEmailHandler(repo RepositoryManager, directory Directory, signer TokenSigner, logger Logger) *VerifyEmailHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &VerifyEmailHandler{
		repo:      repo,
		directory: directory,
		signer:    signer,
		logger:    logger,
		sink:      noopActivitySink{},
	}
}

// WithActivitySink configures an ActivitySink for emitting verification events.
func (h *VerifyEmailHandler) WithActivitySink(sink ActivitySink) *VerifyEmailHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.signer.Verify(PurposeEmailVerification, event.Token)
	if err != nil {
		return err
	}

	// Consume before touching the directory: if two requests race, only
	// the one that flips the row proceeds
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.repo.Tokens().ConsumeTx(ctx, tx, TokenTypeEmailVerification, event.Token)
		return err
	})
	if err != nil {
		return err
	}

	user, err := h.directory.GetByID(ctx, claims.Subject())
	if err != nil {
		return err
	}

	verified := true
	if err := h.directory.Update(ctx, user.UID, DirectoryPatch{EmailVerified: &verified}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
	}
	user.EmailVerified = true

	recordActivity(ctx, h.sink, h.logger, ActivityEventEmailVerified, user.UID, nil)

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{
			User:    user,
			Success: true,
		})
	}

	return nil
}

type ResendVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "user.resend_verification" }

type ResendVerificationResponse struct {
	Success bool
}

// ResendVerificationHandler issues a fresh verification token for an
// unverified account. Earlier tokens stay valid until they expire or
// get consumed, whichever credential arrives first wins.
type ResendVerificationHandler struct {
	repo      RepositoryManager
	directory Directory
	notifier  Notifier
	signer    TokenSigner
	logger    Logger
}

func NewResendVerificationHandler(repo RepositoryManager, directory Directory, notifier Notifier, signer TokenSigner, logger Logger) *ResendVerificationHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &ResendVerificationHandler{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		signer:    signer,
		logger:    logger,
	}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.directory.GetByEmail(ctx, NormalizeEmail(event.Email))
	if err != nil {
		return err
	}

	if user.EmailVerified {
		return ErrEmailAlreadyVerified
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

	// best effort, the token is stored either way and a retry through
	// this endpoint issues a fresh one
	if err := h.notifier.SendVerification(ctx, user.EmailAddr, user.Name, token); err != nil {
		h.logger.Error("Failed to send verification email", "error", err, "user_id", user.UID)
	}

	if event.OnResponse != nil {
		event.OnResponse(&ResendVerificationResponse{Success: true})
	}

	return nil
}
