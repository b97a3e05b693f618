package mesh

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/rtcmesh/internal/signaling"
)

func record(id string, state State) *Connection {
	c := newConnection(id, "name-"+id, nil)
	c.state = state
	return c
}

func candidate(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestRegistryPutGet(t *testing.T) {
	r := newRegistry()

	_, err := r.get("a")
	require.ErrorIs(t, err, ErrNotFound)

	a := record("a", StateInit)
	assert.Nil(t, r.put(a))

	got, err := r.get("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	replacement := record("a", StateInit)
	assert.Same(t, a, r.put(replacement))
	assert.Equal(t, 1, r.size())
}

func TestRegistryRemoveIsCompareAndDelete(t *testing.T) {
	r := newRegistry()

	stale := record("a", StateInit)
	r.put(stale)
	current := record("a", StateInit)
	r.put(current)

	assert.False(t, r.remove(stale))
	got, err := r.get("a")
	require.NoError(t, err)
	assert.Same(t, current, got)

	assert.True(t, r.remove(current))
	assert.False(t, r.remove(current))
	assert.Zero(t, r.size())
}

func TestRegistryListOpen(t *testing.T) {
	r := newRegistry()
	r.put(record("c", StateOpen))
	r.put(record("a", StateOpen))
	r.put(record("b", StateInit))
	r.put(record("d", StateClosed))

	var ids []string
	for _, c := range r.listOpen() {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.Len(t, r.all(), 4)
}

func TestConnectionAdvance(t *testing.T) {
	testCases := []struct {
		name   string
		from   State
		to     State
		wantOK bool
	}{
		{"init to open", StateInit, StateOpen, true},
		{"init to closed", StateInit, StateClosed, true},
		{"open to closed", StateOpen, StateClosed, true},
		{"open to init", StateOpen, StateInit, false},
		{"closed to open", StateClosed, StateOpen, false},
		{"closed to closed", StateClosed, StateClosed, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := record("a", tc.from)
			prev, ok := c.advance(tc.to)
			assert.Equal(t, tc.from, prev)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.to, c.State())
			} else {
				assert.Equal(t, tc.from, c.State())
			}
		})
	}
}

func TestCandidatesHeldUntilDescribed(t *testing.T) {
	c := record("a", StateInit)

	assert.False(t, c.holdCandidate(candidate("one")))
	assert.False(t, c.holdCandidate(candidate("two")))

	held := c.markDescribed()
	require.Len(t, held, 2)
	assert.Equal(t, "one", held[0].Candidate)

	assert.True(t, c.holdCandidate(candidate("three")))

	c.advance(StateClosed)
	assert.False(t, c.holdCandidate(candidate("four")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestNewRejectsBadOptions(t *testing.T) {
	link := signaling.NewRelay().Connect(testRoom, "alice")
	factory := newFakeNetwork().factory()

	testCases := []struct {
		name string
		opts Options
	}{
		{"no factory", Options{Room: "r", Channels: testDescriptor()}},
		{"no room", Options{Channels: testDescriptor(), Transports: factory}},
		{"no channels", Options{Room: "r", Transports: factory}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(link, tc.opts)
			assert.Error(t, err)
		})
	}

	_, err := New(nil, Options{Room: "r", Channels: testDescriptor(), Transports: factory})
	assert.Error(t, err)
}
