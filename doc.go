// Package credentials provides the credential issuance and session
// lifecycle layer for a multi-service deployment: purpose-bound JWT
// signing, single-use verification and reset tokens, refresh sessions,
// and the HTTP surface sibling services authenticate against.
//
// Token purposes:
//   - Every credential is minted for exactly one purpose (access,
//     refresh, email_verification, password_reset) and each purpose has
//     its own signing secret. A token presented under the wrong purpose
//     reports as malformed, never as expired or valid.
//   - Password reset tokens are additionally salted with the account's
//     current password hash, so completing a reset invalidates every
//     outstanding reset token without any blacklist.
//
// Stores:
//   - Tokens persists single-use credentials; Consume flips them with a
//     conditional UPDATE so concurrent consumers cannot both win.
//   - Sessions persists refresh sessions; a refresh credential is only
//     honored while an active, unexpired session row backs it, which is
//     what makes logout and revocation effective.
//
// Collaborators:
//   - User records live in an external directory service and flow emails
//     go through a notification service; both are reached over HTTP with
//     a shared service key. The servicegate middleware enforces that
//     same key on this service's internal endpoints.
package credentials
