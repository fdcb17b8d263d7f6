package jwt

import (
	"crypto/ed25519"
	"encoding/base64"
)

// JWK is one published verification key in JWKS form.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
}

// JWKS is the published key set, one entry per active signing key.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWK encodes an Ed25519 public key as an OKP JWK entry.
func PublicJWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		Kid: kid,
		Alg: "EdDSA",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}
