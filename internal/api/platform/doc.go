// Package platform is the HTTP client of the model hosting platform.
//
// The platform exposes two endpoints: a JSON login that trades an email and
// a password for an access token, and a multipart upload that accepts a model
// archive authorized with that token.
package platform
