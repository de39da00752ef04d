package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/simulator-bot/internal/session"
	"github.com/jose-valero/simulator-bot/internal/session/sessiontest"
)

func TestArmFireOnce(t *testing.T) {
	s := sessiontest.New()
	r := s.Registry()

	hits := 0
	r.Arm(session.Key("t1", "inactivity"), time.Minute, func() { hits++ })
	require.True(t, r.Armed("t1/inactivity"))

	tm := s.Last()
	s.Fire(tm)
	s.Fire(tm) // late duplicate
	assert.Equal(t, 1, hits)
	assert.False(t, r.Armed("t1/inactivity"))
}

func TestRearmReplacesAndStaleCallbackIsNoop(t *testing.T) {
	s := sessiontest.New()
	r := s.Registry()

	var got []string
	r.Arm("c/nudge", time.Minute, func() { got = append(got, "first") })
	first := s.Last()
	r.Arm("c/nudge", time.Minute, func() { got = append(got, "second") })
	second := s.Last()

	assert.False(t, first.Active())
	s.Fire(first)
	assert.Empty(t, got)

	s.Fire(second)
	assert.Equal(t, []string{"second"}, got)
}

func TestDisarmScope(t *testing.T) {
	s := sessiontest.New()
	r := s.Registry()

	r.Arm(session.Key("t1", "inactivity"), time.Minute, func() {})
	r.Arm(session.Key("t1", "other"), time.Minute, func() {})
	r.Arm(session.Key("t10", "inactivity"), time.Minute, func() {})

	assert.Equal(t, 2, r.DisarmScope("t1"))
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Armed("t10/inactivity"))
	assert.False(t, r.Disarm("t1/inactivity"))
	assert.True(t, r.Disarm("t10/inactivity"))
}

func TestRealSchedulerFires(t *testing.T) {
	r := session.NewRegistry()
	done := make(chan struct{})
	r.Arm("x/y", 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired")
	}
	assert.Equal(t, 0, r.Len())
}
