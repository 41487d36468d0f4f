package servicegate

import "github.com/goliatone/go-errors"

// TextCodeUntrustedService is the machine readable code shared by both
// rejection kinds, the response never says which check failed
const TextCodeUntrustedService = "UNTRUSTED_SERVICE"

// ErrServiceKeyMissing rejects requests that present no service
// credential at all
var ErrServiceKeyMissing = errors.New("missing service credential", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeUntrustedService)

// ErrUntrustedService rejects requests whose credential does not check
// out. The message never says whether the key or the name was wrong.
var ErrUntrustedService = errors.New("untrusted service", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeUntrustedService)
