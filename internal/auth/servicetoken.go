package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

const minServiceSecretLength = 20

var (
	ErrMalformedServiceToken = errors.New("malformed service token")
	ErrUnknownService        = errors.New("unknown service")
	ErrServiceSecretMismatch = errors.New("service secret mismatch")
)

// ServiceTokenVerifier checks worker->ingress status-post calls, which
// authenticate with "service-name:secret" rather than a user JWT.
type ServiceTokenVerifier struct {
	secrets map[string]string // service name -> secret
}

func NewServiceTokenVerifier(secrets map[string]string) *ServiceTokenVerifier {
	return &ServiceTokenVerifier{secrets: secrets}
}

// Verify parses "service-name:secret" and checks it against the configured
// secret for that service name in constant time.
func (v *ServiceTokenVerifier) Verify(token string) (serviceName string, err error) {
	name, secret, ok := strings.Cut(token, ":")
	if !ok || len(secret) < minServiceSecretLength {
		return "", ErrMalformedServiceToken
	}

	want, ok := v.secrets[name]
	if !ok {
		return "", ErrUnknownService
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(want)) != 1 {
		return "", ErrServiceSecretMismatch
	}
	return name, nil
}
