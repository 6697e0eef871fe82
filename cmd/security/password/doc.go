// Package password hashes and verifies beekeeper passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Stored hashes are untrusted input. Verify refuses malformed strings and parameters
// far above the configured cost.
package password
