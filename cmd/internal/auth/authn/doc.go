// Package authn orchestrates registration, login and token authorization on top of
// the principal store, the credential service and the token service.
package authn
