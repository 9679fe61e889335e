// Package client talks to the account service on behalf of the CLI.
//
// GRPCClient owns the connection, keeps the bearer token returned by Login
// and attaches it to every later call through an interceptor. Status codes
// are mapped to the sentinel errors in errors.go so callers can use
// errors.Is without importing grpc.
package client
