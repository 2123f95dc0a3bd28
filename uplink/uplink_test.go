package uplink

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/env"
	"github.com/gr-butler/airnode/metrics"
	"github.com/gr-butler/airnode/payload"
	"github.com/gr-butler/airnode/scheduler"
	"github.com/gr-butler/airnode/scheduler/schedulertest"
)

type fakeTransport struct {
	ready  bool
	err    error
	sent   []payload.Packet
	sentAt []time.Time
	clock  clockwork.Clock
}

func (f *fakeTransport) Ready() bool {
	return f.ready
}

func (f *fakeTransport) Send(p payload.Packet) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	f.sentAt = append(f.sentAt, f.clock.Now())
	return nil
}

type fakeNotifier struct {
	lines []string
}

func (f *fakeNotifier) Printf(format string, args ...interface{}) {
	f.lines = append(f.lines, fmt.Sprintf(format, args...))
}

type fakeRecorder struct {
	records []Record
}

func (f *fakeRecorder) Record(r Record) {
	f.records = append(f.records, r)
}

type rig struct {
	c       *Cycle
	s       *scheduler.Scheduler
	fc      clockwork.FakeClock
	tr      *fakeTransport
	notes   *fakeNotifier
	streams *data.Streams
	start   time.Time
}

func newRig(ready bool) *rig {
	fc := clockwork.NewFakeClock()
	r := &rig{
		fc:      fc,
		s:       scheduler.New(fc),
		tr:      &fakeTransport{ready: ready, clock: fc},
		notes:   &fakeNotifier{},
		streams: data.CreateStreams(),
		start:   fc.Now(),
	}
	r.c = New(r.s, r.streams, r.tr, r.notes)
	return r
}

func (r *rig) advance(d time.Duration) {
	schedulertest.Advance(r.s, r.fc, d)
}

func Test_Cycle_HeaderSequence(t *testing.T) {
	r := newRig(true)
	assert.Equal(t, payload.Boot, r.c.Header())

	r.advance(env.BootSendDelay)
	require.Len(t, r.tr.sent, 1)
	assert.Equal(t, byte(payload.Boot), r.tr.sent[0][0])
	assert.Equal(t, payload.Update, r.c.Header())

	r.advance(env.SendInterval)
	require.Len(t, r.tr.sent, 2)
	assert.Equal(t, byte(payload.Update), r.tr.sent[1][0])
	assert.Equal(t, r.start.Add(env.BootSendDelay+env.SendInterval), r.tr.sentAt[1])

	r.c.Click()
	assert.Equal(t, payload.ButtonClick, r.c.Header())
	r.advance(0)
	require.Len(t, r.tr.sent, 3)
	assert.Equal(t, byte(payload.ButtonClick), r.tr.sent[2][0])

	// the click only marks one packet and restarts the window
	r.advance(env.SendInterval)
	require.Len(t, r.tr.sent, 4)
	assert.Equal(t, byte(payload.Update), r.tr.sent[3][0])
}

func Test_Cycle_WaitsForTransport(t *testing.T) {
	r := newRig(false)
	waits := testutil.ToFloat64(metrics.TransportWaits)

	r.advance(env.BootSendDelay + time.Second)
	assert.Empty(t, r.tr.sent)
	assert.Equal(t, payload.Boot, r.c.Header())
	assert.Greater(t, testutil.ToFloat64(metrics.TransportWaits), waits)

	r.tr.ready = true
	r.advance(env.ReadyPollInterval)
	require.Len(t, r.tr.sent, 1)
	sentAt := r.tr.sentAt[0]
	assert.True(t, sentAt.After(r.start.Add(env.BootSendDelay)))

	// the next window counts from the actual send
	next, ok := r.s.Next()
	require.True(t, ok)
	assert.Equal(t, sentAt.Add(env.SendInterval), next)
}

func Test_Cycle_SendNowCollapsesWindow(t *testing.T) {
	r := newRig(true)
	r.advance(env.BootSendDelay)
	r.advance(5 * time.Minute)

	r.c.SendNow()
	r.advance(0)
	require.Len(t, r.tr.sent, 2)
	assert.Equal(t, byte(payload.Update), r.tr.sent[1][0])

	next, _ := r.s.Next()
	assert.Equal(t, r.fc.Now().Add(env.SendInterval), next)
}

func Test_Cycle_EncodesAverages(t *testing.T) {
	r := newRig(true)
	r.streams.Stream(data.CO2).Feed(600)
	r.streams.Stream(data.CO2).Feed(620)

	r.advance(env.BootSendDelay)
	require.Len(t, r.tr.sent, 1)
	assert.Equal(t, []byte{0x02, 0x62}, r.tr.sent[0][9:11])
	assert.Equal(t, []byte{0xff, 0xff}, r.tr.sent[0][7:9])
	assert.Equal(t, "$SEND: "+r.tr.sent[0].Hex(), r.notes.lines[0])
	assert.Equal(t, 610.0, testutil.ToFloat64(metrics.ChannelAverage.WithLabelValues("CO2")))
}

func Test_Cycle_SendErrorKeepsHeader(t *testing.T) {
	r := newRig(true)
	r.tr.err = errors.New("radio busy")

	r.advance(env.BootSendDelay)
	assert.Empty(t, r.tr.sent)
	assert.Equal(t, payload.Boot, r.c.Header())
	assert.Empty(t, r.notes.lines)

	// no retry until the next window
	r.tr.err = nil
	r.advance(env.SendInterval - time.Second)
	assert.Empty(t, r.tr.sent)
	r.advance(time.Second)
	require.Len(t, r.tr.sent, 1)
	assert.Equal(t, byte(payload.Boot), r.tr.sent[0][0])
}

func Test_Cycle_Recorder(t *testing.T) {
	r := newRig(true)
	rec := &fakeRecorder{}
	r.c.SetRecorder(rec)

	r.advance(env.BootSendDelay)
	require.Len(t, rec.records, 1)
	assert.Equal(t, payload.Boot, rec.records[0].Header)
	assert.Equal(t, r.tr.sent[0], rec.records[0].Packet)
	assert.Equal(t, r.start.Add(env.BootSendDelay), rec.records[0].SentAt)
	assert.NotEqual(t, [16]byte{}, [16]byte(rec.records[0].ID))
}
