package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/rtcmesh/internal/config"
	"github.com/1ureka/rtcmesh/internal/transport"
)

func TestNormalizeWSURL(t *testing.T) {
	testCases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "ws://127.0.0.1:8080", want: "ws://127.0.0.1:8080/ws"},
		{raw: "wss://relay.example.org/other?x=1", want: "wss://relay.example.org/ws"},
		{raw: "https://relay.example.org", want: "wss://relay.example.org/ws"},
		{raw: "  ws://host:1/ws  ", want: "ws://host:1/ws"},
		{raw: "not a url", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := normalizeWSURL(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransportConfig(t *testing.T) {
	cfg := config.Default()
	cfg.IncludeLoopback = true
	cfg.ICEServers = []config.ICEServer{
		{URLs: []string{"stun:a:3478"}},
		{URLs: []string{"turn:b:3478"}, Username: "u", Credential: "p"},
	}

	tc := transportConfig(cfg)
	assert.True(t, tc.IncludeLoopback)
	require.Len(t, tc.ICEServers, 2)
	assert.Equal(t, "u", tc.ICEServers[1].Username)

	cfg.ICEServers = nil
	cfg.IncludeLoopback = false
	assert.Equal(t, transport.DefaultConfig(), transportConfig(cfg))
}
