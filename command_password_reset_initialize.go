package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Success bool
}

// InitializePasswordResetHandler starts the reset flow. The reset token
// is signed with the purpose secret salted by the account's current
// password hash, so completing a reset kills every other outstanding
// reset token for that account.
type InitializePasswordResetHandler struct {
	repo      RepositoryManager
	directory Directory
	notifier  Notifier
	signer    TokenSigner
	logger    Logger
	sink      ActivitySink
}

func NewInitializePasswordResetHandler(repo RepositoryManager, directory Directory, notifier Notifier, signer TokenSigner, logger Logger) *InitializePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &InitializePasswordResetHandler{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		signer:    signer,
		logger:    logger,
		sink:      noopActivitySink{},
	}
}

// WithActivitySink configures an ActivitySink for emitting reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	respond := func() {
		if event.OnResponse != nil {
			event.OnResponse(&InitializePasswordResetResponse{Success: true})
		}
	}

	user, err := h.directory.GetByEmail(ctx, NormalizeEmail(event.Email))
	if err != nil {
		// Unknown emails report success too, the endpoint must not be
		// usable to enumerate accounts
		if goerrors.IsNotFound(err) {
			h.logger.Info("Password reset requested for unknown email")
			respond()
			return nil
		}
		return err
	}

	hash, err := h.directory.GetPasswordHash(ctx, user.EmailAddr)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve password hash")
	}

	token, err := h.signer.Sign(PurposePasswordReset, IdentityFromDirectory(user), WithSubjectSalt(hash))
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return issueStoredToken(ctx, tx, h.repo.Tokens(), h.signer, user, PurposePasswordReset, token)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	// email dispatch is best effort. Failing here would tell the
	// caller the address exists, which this flow must never do.
	if err := h.notifier.SendPasswordReset(ctx, user, token); err != nil {
		h.logger.Error("Failed to send reset email", "error", err, "user_id", user.UID)
	}

	recordActivity(ctx, h.sink, h.logger, ActivityEventPasswordResetStart, user.UID, nil)

	respond()
	return nil
}
