package auth

import (
	"crypto/subtle"

	"github.com/geocoder89/identityhub/internal/apperr"
)

// Channel names the proof that opened the gate.
type Channel string

const (
	ChannelHeader Channel = "header"
	ChannelQuery  Channel = "query"
	ChannelBearer Channel = "bearer"
	ChannelNone   Channel = "none"
)

type Authenticator interface {
	Authenticate(authorization string) (*Claims, error)
}

// Gate protects the operational stats resource. It accepts any one of three
// independent proofs: the header secret, the query secret, or a valid bearer
// token. The two static secrets are shared values with no identity attached
// and are not fit to guard a production trust boundary.
type Gate struct {
	headerSecret []byte
	querySecret  []byte
	guard        Authenticator
}

// NewGate builds a gate. An empty secret disables its channel.
func NewGate(headerSecret, querySecret string, guard Authenticator) *Gate {
	return &Gate{
		headerSecret: []byte(headerSecret),
		querySecret:  []byte(querySecret),
		guard:        guard,
	}
}

func (g *Gate) HeaderChannelEnabled() bool { return len(g.headerSecret) > 0 }
func (g *Gate) QueryChannelEnabled() bool  { return len(g.querySecret) > 0 }

// Authorize returns the first channel that accepted the request, or
// ChannelNone with a Forbidden error when all three checks fail.
func (g *Gate) Authorize(headerSecret, querySecret, authorization string) (Channel, error) {
	checks := []struct {
		channel Channel
		pass    func() bool
	}{
		{ChannelHeader, func() bool { return secretMatches(g.headerSecret, headerSecret) }},
		{ChannelQuery, func() bool { return secretMatches(g.querySecret, querySecret) }},
		{ChannelBearer, func() bool {
			if authorization == "" || g.guard == nil {
				return false
			}
			_, err := g.guard.Authenticate(authorization)
			return err == nil
		}},
	}

	for _, c := range checks {
		if c.pass() {
			return c.channel, nil
		}
	}
	return ChannelNone, apperr.Forbidden("Access denied")
}

func secretMatches(want []byte, got string) bool {
	if len(want) == 0 || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare(want, []byte(got)) == 1
}
