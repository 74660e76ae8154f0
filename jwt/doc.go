// Package jwt issues and verifies the HMAC-signed access and refresh tokens used by
// statelessauth.
//
// A [Manager] owns the single process-wide signing key. Verification distinguishes
// three failure kinds: [ErrMalformedToken], [ErrExpiredToken] and
// [ErrInvalidSignature]. The signature is checked before any claim, so a forged token
// never reports expiry.
//
// # What this package must NOT do
//
//   - Log or return the signing key.
//   - Consult a principal store. Whether the subject still exists is the Engine's call.
package jwt
