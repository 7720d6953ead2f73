package redis

import "fmt"

// Key templates for the anonymous session store
const (
	KeySession       = "session:%s"       // session:{token}
	KeyPollSessions  = "poll:%s:sessions" // set of session tokens
	KeyPollAnswered  = "poll:%s:answered" // set of tokens that completed the poll
	KeyActiveSession = "poll:%s:fp:%s"    // single-active-session reservation
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}
	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeySession is the hash holding one session document
func (kb *KeyBuilder) KeySession(token string) string {
	return kb.BuildKey(fmt.Sprintf(KeySession, token))
}

// KeyPollSessions is the set of all session tokens issued for a poll
func (kb *KeyBuilder) KeyPollSessions(pollUUID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPollSessions, pollUUID))
}

// KeyPollAnswered is the set of session tokens that completed a poll
func (kb *KeyBuilder) KeyPollAnswered(pollUUID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPollAnswered, pollUUID))
}

// KeyActiveSession reserves one live session per poll+fingerprint
func (kb *KeyBuilder) KeyActiveSession(pollUUID, fingerprint string) string {
	return kb.BuildKey(fmt.Sprintf(KeyActiveSession, pollUUID, fingerprint))
}
