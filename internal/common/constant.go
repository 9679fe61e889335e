// Package common contains shared constants and sentinel errors used across
// the account service and its CLI.
package common

// AuthorizationHeaderName is the gRPC metadata key used to carry the bearer
// access token on outbound requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token inside the authorization metadata value.
const BearerPrefix = "Bearer "

// RequestIDHeaderName is the metadata key echoing the per-call request id.
const RequestIDHeaderName = "x-request-id"
