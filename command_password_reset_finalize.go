package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	UserID     string `json:"id" doc:"Account identifier from the reset link."`
	Token      string `json:"token" doc:"Reset token from the reset link."`
	Password   string `json:"password" doc:"New password."`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	Success bool
}

// FinalizePasswordResetHandler completes the reset flow: it verifies the
// salted token, burns it, writes the new hash to the directory, and
// revokes every session the account holds
type FinalizePasswordResetHandler struct {
	repo      RepositoryManager
	directory Directory
	signer    TokenSigner
	logger    Logger
	sink      ActivitySink
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, directory Directory, signer TokenSigner, logger Logger) *FinalizePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &FinalizePasswordResetHandler{
		repo:      repo,
		directory: directory,
		signer:    signer,
		logger:    logger,
		sink:      noopActivitySink{},
	}
}

// WithActivitySink configures an ActivitySink for emitting reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.directory.GetByID(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrTokenMalformed
		}
		return err
	}

	hash, err := h.directory.GetPasswordHash(ctx, user.EmailAddr)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve password hash")
	}

	// The salt is the current hash. A token minted before an earlier
	// reset no longer verifies here.
	claims, err := h.signer.Verify(PurposePasswordReset, event.Token, WithSubjectSalt(hash))
	if err != nil {
		return err
	}

	if claims.Subject() != user.UID {
		return ErrTokenMalformed
	}

	// Policy runs before the token burns, a rejected password leaves the
	// token spendable for a retry
	if err := ValidatePasswordPolicy(event.Password); err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.repo.Tokens().ConsumeTx(ctx, tx, TokenTypePasswordReset, event.Token)
		return err
	})
	if err != nil {
		return err
	}

	newHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := h.directory.Update(ctx, user.UID, DirectoryPatch{PasswordHash: &newHash}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	// A reset means the old credential can no longer be trusted, drop
	// every live session
	userID, err := claims.UserUUID()
	if err == nil {
		if _, err := h.repo.Sessions().RevokeAllForUser(ctx, userID); err != nil {
			h.logger.Warn("Failed to revoke sessions after password reset", "user_id", user.UID, "error", err)
		}
	}

	recordActivity(ctx, h.sink, h.logger, ActivityEventPasswordReset, user.UID, nil)

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{Success: true})
	}

	return nil
}
