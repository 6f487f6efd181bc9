package tss

import (
	"fmt"
)

// Parameters of a threshold key. Any Threshold+1 of the Parties can
// collaboratively produce a signature; Threshold or fewer cannot.
type Parameters struct {
	Parties   uint16 `json:"parties" msgpack:"parties"`
	Threshold uint16 `json:"threshold" msgpack:"threshold"`
}

// Validate returns an error if the parameters cannot describe a threshold key.
func (p Parameters) Validate() error {
	if p.Parties < 2 {
		return fmt.Errorf("a threshold key needs at least 2 parties, got %d", p.Parties)
	}
	if p.Threshold == 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if p.Threshold >= p.Parties {
		return fmt.Errorf("threshold (%d) must be less than the number of parties (%d)", p.Threshold, p.Parties)
	}
	return nil
}

// Signers is the exact number of parties taking part in a signing session.
func (p Parameters) Signers() uint16 {
	return p.Threshold + 1
}

func (p Parameters) String() string {
	return fmt.Sprintf("%d-of-%d", p.Threshold+1, p.Parties)
}

// SessionKind distinguishes key generation sessions from signing sessions.
type SessionKind string

const (
	SessionKeygen SessionKind = "keygen"
	SessionSign   SessionKind = "sign"
)

// Group is a set of parties sharing threshold parameters, as known to the
// session coordination server.
type Group struct {
	ID     string     `json:"uuid"`
	Label  string     `json:"label"`
	Params Parameters `json:"params"`
}

// Session is a single protocol execution within a Group.
type Session struct {
	ID      string      `json:"uuid"`
	GroupID string      `json:"group_id"`
	Kind    SessionKind `json:"kind"`
}

// PartySignup is the number the coordination server assigned to this party
// within one session. Signup numbers are 1-based and scoped to the session,
// they are unrelated to the party's key share index.
type PartySignup struct {
	Number    uint16 `json:"number"`
	SessionID string `json:"uuid"`
}
