// Package identity holds beekeeper's domain vocabulary: principals and their contact
// channels, tenant memberships, scopes and the ULID-backed ID type.
//
// Values here are plain data. Persistence lives in cmd/storage; every validation
// failure is reported as a fault.ConversionError naming the offending field.
package identity
