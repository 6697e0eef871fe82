package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env helpers read BEEKEEPER_* variables. An unset, blank or unparseable value yields
// def, so callers pass the current value to get "override if set" semantics.

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	return envParse(key, def, func(s string) (string, error) { return s, nil })
}

// EnvBool reads a bool env var with a default.
func EnvBool(key string, def bool) bool {
	return envParse(key, def, strconv.ParseBool)
}

// EnvInt reads a positive int env var with a default.
func EnvInt(key string, def int) int {
	return envParse(key, def, func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err == nil && n <= 0 {
			err = strconv.ErrRange
		}
		return n, err
	})
}

// EnvInt32 reads a non-negative int32 env var with a default.
func EnvInt32(key string, def int32) int32 {
	return envParse(key, def, func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		if err == nil && n < 0 {
			err = strconv.ErrRange
		}
		return int32(n), err
	})
}

// EnvDuration reads a positive duration env var with a default.
func EnvDuration(key string, def time.Duration) time.Duration {
	return envParse(key, def, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d <= 0 {
			err = strconv.ErrRange
		}
		return d, err
	})
}

func envParse[T any](key string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}
