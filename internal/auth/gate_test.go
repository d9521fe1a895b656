package auth_test

import (
	"testing"
	"time"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	headerSecret = "header-secret-value"
	querySecret  = "query-secret-value"
)

func TestGate_Authorize(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := newManager(t, clock)
	gate := auth.NewGate(headerSecret, querySecret, auth.NewGuard(m))

	valid, err := m.Issue(sam)
	require.NoError(t, err)

	// issued a day and a half ago relative to the clock below
	clock.now = clock.now.Add(-36 * time.Hour)
	expired, err := m.Issue(sam)
	require.NoError(t, err)
	clock.now = clock.now.Add(36 * time.Hour)

	tests := []struct {
		name        string
		header      string
		query       string
		authz       string
		wantChannel auth.Channel
		wantErr     bool
	}{
		{name: "header_only", header: headerSecret, wantChannel: auth.ChannelHeader},
		{name: "query_only", query: querySecret, wantChannel: auth.ChannelQuery},
		{name: "bearer_only", authz: "Bearer " + valid, wantChannel: auth.ChannelBearer},
		{name: "header_secret_in_query_slot", query: headerSecret, wantErr: true},
		{name: "query_secret_in_header_slot", header: querySecret, wantErr: true},
		{name: "wrong_header_good_query", header: "nope", query: querySecret, wantChannel: auth.ChannelQuery},
		{name: "wrong_everything_with_expired_token", header: "nope", query: "nope", authz: "Bearer " + expired, wantErr: true},
		{name: "expired_token_alone", authz: "Bearer " + expired, wantErr: true},
		{name: "non_bearer_scheme", authz: "Basic " + valid, wantErr: true},
		{name: "nothing", wantErr: true},
		{name: "prefix_of_secret", header: headerSecret[:5], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := gate.Authorize(tt.header, tt.query, tt.authz)
			if tt.wantErr {
				assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
				assert.Equal(t, auth.ChannelNone, ch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChannel, ch)
		})
	}
}

func TestGate_EmptySecretsDisableChannels(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newManager(t, clock)
	gate := auth.NewGate("", "", auth.NewGuard(m))

	assert.False(t, gate.HeaderChannelEnabled())
	assert.False(t, gate.QueryChannelEnabled())

	_, err := gate.Authorize("", "", "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	tok, err := m.Issue(sam)
	require.NoError(t, err)
	ch, err := gate.Authorize("", "", "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, auth.ChannelBearer, ch)
}
