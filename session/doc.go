// Package session issues and tracks stateless session tokens.
//
// A token is the claim set itself: compact JSON, right-padded with spaces to
// the RSA modulus length and raised to the private exponent with no padding
// scheme. Anyone holding the public key can recover the claims, so tokens
// carry no secrets. Only the private key holder can produce a block that
// recovers to well-formed claims, and that is the whole of the
// authentication.
//
// Note that raw RSA gives no confidentiality and no protection against
// chosen-message forgery. The scheme avoids server-side session storage;
// it is not authenticated encryption.
//
// # Tokens and prefixes
//
// The first PrefixLength characters of a token are its prefix. The
// Registry keys sessions by prefix, and clients echo the prefix in an
// "Authorization: Token <prefix>" header which must match the session
// cookie.
//
// # Usage
//
//	key, err := session.LoadPrivateKey("session.pem")
//	codec, err := session.NewRSACodec(key, 30*24*time.Hour)
//	registry := session.NewRegistry(codec, session.WithGracePeriod(time.Hour))
//
//	s, err := registry.Get(ctx, cookie.Value)
//	if registry.Expiring(s) {
//	    s, err = registry.Rotate(ctx, s)
//	}
package session
