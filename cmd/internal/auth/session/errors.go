package session

import (
	"errors"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid session config")

func invalidToken(op, msg string) error {
	return fault.OpError{Op: op, Kind: fault.ErrInvalidToken, Msg: msg}
}

func expiredToken(op string) error {
	return fault.OpError{Op: op, Kind: fault.ErrExpiredToken, Msg: "token expired"}
}
