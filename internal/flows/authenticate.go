package flows

import (
	"context"
)

// AuthenticateResult carries the resolved principal or failure metadata.
type AuthenticateResult struct {
	Failure   FailureKind
	Err       error
	Token     VerifiedToken
	Principal PrincipalRecord
}

// AuthenticateDeps captures bearer authentication dependencies.
type AuthenticateDeps struct {
	VerifyAccess       func(string) (VerifiedToken, error)
	ClassifyTokenError func(error) FailureKind
	Lookup             PrincipalLookup
}

// RunAuthenticate verifies an access token and resolves its subject to an
// active principal.
func RunAuthenticate(ctx context.Context, accessToken string, deps AuthenticateDeps) AuthenticateResult {
	if accessToken == "" {
		return AuthenticateResult{Failure: FailureMissingToken}
	}

	tok, err := deps.VerifyAccess(accessToken)
	if err != nil {
		kind := FailureTokenMalformed
		if deps.ClassifyTokenError != nil {
			kind = deps.ClassifyTokenError(err)
		}
		return AuthenticateResult{Failure: kind, Err: err}
	}

	p, kind, err := deps.Lookup.resolve(ctx, tok)
	return AuthenticateResult{
		Failure:   kind,
		Err:       err,
		Token:     tok,
		Principal: p,
	}
}
