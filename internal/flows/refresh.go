package flows

import (
	"context"
)

// RefreshResult carries either the new access token or failure metadata.
type RefreshResult struct {
	Failure     FailureKind
	Err         error
	Token       VerifiedToken
	Principal   PrincipalRecord
	AccessToken string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh      func(string) (VerifiedToken, error)
	ClassifyTokenError func(error) FailureKind
	Lookup             PrincipalLookup
	IssueAccessToken   func(PrincipalRecord) (string, error)
}

// RunRefresh verifies a refresh token, re-reads its principal and issues a
// new access token. The refresh token itself is not rotated.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: FailureMissingToken}
	}

	tok, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		kind := FailureTokenMalformed
		if deps.ClassifyTokenError != nil {
			kind = deps.ClassifyTokenError(err)
		}
		return RefreshResult{Failure: kind, Err: err}
	}

	p, kind, err := deps.Lookup.resolve(ctx, tok)
	if kind != FailureNone {
		return RefreshResult{Failure: kind, Err: err, Token: tok, Principal: p}
	}

	access, err := deps.IssueAccessToken(p)
	if err != nil {
		return RefreshResult{Failure: FailureIssue, Err: err, Token: tok, Principal: p}
	}

	return RefreshResult{
		Token:       tok,
		Principal:   p,
		AccessToken: access,
	}
}
