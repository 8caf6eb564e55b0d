// Package common contains shared constants and sentinel errors used across
// almacen components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the bridge
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// AppName is used as the default data directory name and as the JWT issuer.
const AppName = "almacen"
