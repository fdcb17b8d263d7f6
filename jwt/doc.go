// Package jwt manages access-token issuance and verification. Tokens are
// Ed25519-signed, tagged with the signing key id in the header, and verified
// against whatever key set the caller resolves at parse time, so key
// rotation never breaks in-flight tokens.
package jwt
