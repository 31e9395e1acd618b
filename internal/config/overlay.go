package config

import "os"

// AuthorizationPrefix precedes the API key in the Authorization header value.
const AuthorizationPrefix = "ApiKey "

// CredentialSource names where the final authorization value came from.
type CredentialSource string

const (
	CredentialEnvironment   CredentialSource = "environment"
	CredentialConfiguration CredentialSource = "configuration"
)

// OverlayAPIKey replaces cfg.Authorization with AuthorizationPrefix+value when
// envVar is set. When it is unset cfg is left untouched; that is the normal
// fallback, not an error.
func OverlayAPIKey(cfg *Config, envVar string, lookup LookupEnv) CredentialSource {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if key, ok := lookup(envVar); ok {
		cfg.Authorization = AuthorizationPrefix + key
		return CredentialEnvironment
	}
	return CredentialConfiguration
}
