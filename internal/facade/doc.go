// Package facade exposes the local state and entitlement engine to
// out-of-process callers through two surfaces sharing one operation set:
// GET_SETTINGS, UPDATE_SETTINGS, GET_LICENSE, GET_ANALYTICS,
// UPDATE_ANALYTICS and GET_CREDITS.
//
// The HTTP control API (chi) requires a bearer credential on every call
// except the liveness check. A credential is either an issued API key —
// records stored one document per key, only the sha256 hash at rest — or a
// short-lived HS256 JWT exchanged for one at POST /v1/auth/token. The
// credential is a capability, not a statement of tier: tier always comes
// from the entitlement cache.
//
// The local command bridge speaks 4-byte little-endian length-prefixed JSON
// frames over stdin/stdout and trusts its spawning caller.
package facade
