// Package fault is beekeeper's single error taxonomy.
//
// Every layer reports failures through the sentinel kinds below, wrapped in one of the
// typed errors of this package. Adapters (pgx, argon2, paseto, jwt, os) translate their
// library errors exactly once at their boundary; callers above the adapters only ever
// inspect kinds via errors.Is or the Is* helpers.
package fault
