// Package session is beekeeper's token service.
//
// Tokens are self-contained and never stored: Issue stamps and signs the claims,
// Verify checks the signature and Authorize additionally enforces expiration and
// not-before against the service clock. Signing is delegated to a Signer: PASETO
// v4.public (default), PASETO v4.local or JWT with EdDSA. Key material lives in a JSON
// key file created with mode 0600 on first start.
package session
