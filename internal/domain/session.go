package domain

import "time"

// Session is the ephemeral record of one anonymous respondent answering one
// poll. It lives in the document store, keyed by its bearer token, and is
// never physically deleted in the normal flow: the sweeper or a lazy check
// flips Expired, the recorder flips Answered exactly once.
type Session struct {
	Token       string     `json:"token"`
	Fingerprint string     `json:"fingerprint"`
	PollUUID    string     `json:"poll_uuid"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
	Answered    bool       `json:"answered"`
}

// Fresh reports whether the session may still be used at the given instant
func (s *Session) Fresh(now time.Time) bool {
	if s.Expired {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return true
}

// StartSessionRequest opens a participation session for a published poll
type StartSessionRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// StartSessionResponse returns the bearer token the respondent must present
// on every subsequent participation request.
type StartSessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}
