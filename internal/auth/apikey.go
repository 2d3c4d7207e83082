package auth

import "errors"

var ErrUnknownAPIKey = errors.New("unknown api key")

// APIKeyVerifier checks a request's key against a static set configured at
// startup. Keys map to an owning principal name for logging/rate-limit
// keying purposes.
type APIKeyVerifier struct {
	keys map[string]string // key -> principal
}

func NewAPIKeyVerifier(keys map[string]string) *APIKeyVerifier {
	return &APIKeyVerifier{keys: keys}
}

func (v *APIKeyVerifier) Verify(key string) (principal string, err error) {
	principal, ok := v.keys[key]
	if !ok {
		return "", ErrUnknownAPIKey
	}
	return principal, nil
}
