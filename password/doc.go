// Package password hashes and verifies principal passwords.
//
// # Output format
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] also accepts bcrypt hashes ($2a$, $2b$, $2y$) so principals
// imported from older stores can still sign in. [Hasher.NeedsUpgrade] flags those,
// and argon2id hashes made with weaker parameters, for re-hashing after a
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Enforce password policy beyond rejecting empty input.
//   - Log plaintext passwords.
package password
