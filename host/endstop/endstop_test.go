package endstop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gopper/protocol"
)

type fakeLink struct{ sent []string }

func (l *fakeLink) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	l.sent = append(l.sent, name)
	if args != nil {
		args(protocol.NewScratchOutput())
	}
	return nil
}

func TestEndstop_ConfigureEndstop(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Config{OID: 1, Pin: 5, PullUp: true})
	require.NoError(t, e.ConfigureEndstop())
	require.Equal(t, []string{"config_endstop"}, link.sent)
}

func TestEndstop_HomeStartArmsSampling(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Config{OID: 0, PinValue: 1})
	require.NoError(t, e.HomeStart(100))
	require.Equal(t, []string{"endstop_home"}, link.sent)
	require.False(t, e.Triggered())
}

func TestEndstop_OnState_TransitionFromHomingToNotHomingSetsTriggered(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Config{OID: 0})
	require.NoError(t, e.HomeStart(0))
	require.False(t, e.Triggered())

	e.OnState(false, 1234, 1)
	require.True(t, e.Triggered())
}

func TestEndstop_OnState_StillHomingDoesNotTrigger(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Config{OID: 0})
	require.NoError(t, e.HomeStart(0))

	e.OnState(true, 1234, 0)
	require.False(t, e.Triggered())
}

func TestEndstop_HomeFinalize_ClearsHomingFlagWithoutResettingTrigger(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Config{OID: 0})
	require.NoError(t, e.HomeStart(0))
	e.OnState(false, 0, 1)
	require.True(t, e.Triggered())

	require.NoError(t, e.HomeFinalize())
	require.True(t, e.Triggered(), "HomeFinalize must not clear an already-observed trigger")
}

func TestEndstop_Query_ReturnsLastObservedState(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Config{OID: 2})
	triggered, err := e.Query(0)
	require.NoError(t, err)
	require.False(t, triggered)
	require.Equal(t, []string{"endstop_query_state"}, link.sent)
}
