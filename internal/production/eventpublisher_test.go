package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/rtkernel"
	"github.com/comalice/rtkernel/testutil"
)

func TestChannelPublisher_Delivery(t *testing.T) {
	pub := NewChannelPublisher(8)
	s := newScheduler(t, rtkernel.WithTracer(pub))
	require.NoError(t, s.Actor(3).SendSignal(sigWork))

	_, err := testutil.Drain(s, 100)
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	var recs []rtkernel.TraceRecord
	for rec := range pub.Records() {
		recs = append(recs, rec)
	}
	require.Len(t, recs, 2)
	assert.Equal(t, 5, recs[0].Priority)
	assert.Equal(t, "control", recs[0].Task)
	assert.Equal(t, 3, recs[1].Priority)
	for _, rec := range recs {
		assert.Equal(t, sigWork, rec.Signal)
		assert.Equal(t, rtkernel.ResultHandled, rec.Result)
		assert.Equal(t, "sink", rec.State)
	}
	assert.Less(t, recs[0].Seq, recs[1].Seq)
	assert.Zero(t, pub.Dropped())
}

func TestChannelPublisher_BackpressureDrop(t *testing.T) {
	pub := NewChannelPublisher(1)
	for i := range 3 {
		pub.Trace(rtkernel.TraceRecord{Seq: uint64(i)})
	}
	assert.Equal(t, uint64(2), pub.Dropped())

	rec := <-pub.Records()
	assert.Equal(t, uint64(0), rec.Seq, "the first record is kept")
}

func TestChannelPublisher_Close(t *testing.T) {
	pub := NewChannelPublisher(1)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	pub.Trace(rtkernel.TraceRecord{})
	assert.Equal(t, uint64(1), pub.Dropped())
	_, ok := <-pub.Records()
	assert.False(t, ok)
}
