// Package identity is the token lifecycle core for a multi-property
// platform: issuance and verification of signed access tokens, rotation and
// theft detection of refresh tokens, rate limiting of sensitive operations,
// and short-lived single-use tokens for cross-domain session handoff.
//
// The [Engine] is built once via [New] and a [Builder], with all persistence
// behind the [Store] interface. Request handlers are stateless: the store is
// the sole source of truth and the sole synchronization point, and every
// security-critical two-step mutation (revoke-old-plus-insert-new rotation,
// single-use redemption, counter increment) is a single conditional store
// operation.
//
// Storage backends live in the postgres, redisrate and memstore
// sub-packages; the httpapi package exposes the engine over HTTP.
package identity
