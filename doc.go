// Package tollgate grants short-lived, signed access to objects in an
// S3-compatible store and tracks the user sessions that are allowed to ask
// for it.
//
// The root package holds the AWS Signature Version 4 primitives:
//
//   - Scope: the date/region/service binding and the derived signing key
//   - PostPolicy: form fields and policy document for browser POST uploads
//   - PresignedURL: query-authenticated URLs for GET, HEAD, PUT, POST and DELETE
//   - SignatureVerifier: server-side check of presigned URLs
//
// Sessions live in the session package, key material in keybackend, user
// profiles in database, and the HTTP surface in http.
//
// # Example Usage
//
//	scope := tollgate.NewScope(2 * time.Hour)
//
//	policy := tollgate.NewPostPolicy("uploads", "avatars/${filename}", scope)
//	_ = policy.Insert("Content-Type", "image/png")
//	_ = policy.SetLengthRange(0, 10<<20)
//	fields, err := policy.Sign(accessKey, secretKey)
//
//	u, _ := url.Parse("https://uploads.s3.amazonaws.com/avatars/alice.png")
//	presigned, err := tollgate.NewPresignedURL(u, "GET", scope)
//	link, err := presigned.Sign(accessKey, secretKey)
package tollgate
