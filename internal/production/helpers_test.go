package production

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comalice/rtkernel"
)

const sigWork = rtkernel.SigUser

var sinkState = &rtkernel.State{Name: "sink", Handler: func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
	return m.Handled()
}}

// newScheduler returns a scheduler with a blocked actor at 3 and a ready one,
// holding one event, at 5.
func newScheduler(t *testing.T, opts ...rtkernel.Option) *rtkernel.Scheduler {
	t.Helper()
	s, err := rtkernel.NewScheduler(rtkernel.DefaultConfig(), opts...)
	require.NoError(t, err)
	for _, spec := range []rtkernel.ActorSpec{
		{Name: "logger", Priority: 3, Kind: rtkernel.FSM, Initial: sinkState},
		{Name: "control", Priority: 5, Kind: rtkernel.FSM, Initial: sinkState, QueueCapacity: 4},
	} {
		_, err := s.RegisterActor(spec)
		require.NoError(t, err)
	}
	require.NoError(t, s.StartAll())
	require.NoError(t, s.Actor(5).SendSignal(sigWork))
	return s
}
