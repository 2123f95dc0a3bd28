package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/payload"
	"github.com/gr-butler/airnode/uplink"
)

type averages map[data.Channel]float64

func (a averages) Average(ch data.Channel) (float64, bool) {
	v, ok := a[ch]
	return v, ok
}

func record(h payload.Header, a averages) uplink.Record {
	return uplink.Record{
		ID:     uuid.New(),
		SentAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Header: h,
		Packet: payload.Encode(h, a),
	}
}

func TestParamsFromRecord(t *testing.T) {
	rec := record(payload.Update, averages{data.Temperature: 21.4, data.CO2: 640})

	p, err := ParamsFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, p.ID)
	assert.Equal(t, "UPDATE", p.Header)
	assert.Len(t, p.Packet, payload.Size)
	assert.True(t, p.Temperature.Valid)
	assert.InDelta(t, 21.4, p.Temperature.Float64, 1e-9)
	assert.True(t, p.CO2.Valid)
	assert.Equal(t, 640.0, p.CO2.Float64)
	assert.False(t, p.Voltage.Valid)
	assert.False(t, p.Pressure.Valid)
}

type fakeWriter struct {
	mu   sync.Mutex
	rows []WriteUplinkParams
}

func (f *fakeWriter) WriteUplink(_ context.Context, p WriteUplinkParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, p)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func Test_Recorder_Run(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Record(record(payload.Boot, averages{}))
	r.Record(record(payload.ButtonClick, averages{data.Humidity: 50}))

	assert.Eventually(t, func() bool { return w.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "BOOT", w.rows[0].Header)
	assert.Equal(t, "BUTTON_CLICK", w.rows[1].Header)
}

func Test_Recorder_DropsWhenFull(t *testing.T) {
	r := NewRecorder(&fakeWriter{}, 1)
	r.Record(record(payload.Update, averages{}))
	r.Record(record(payload.Update, averages{}))
	assert.Len(t, r.records, 1)
}

// Needs a scratch database, e.g.
// AIRNODE_TEST_DB="postgres://airnode@localhost/airnode_test?sslmode=disable"
func TestWriteUplink(t *testing.T) {
	dsn, ok := os.LookupEnv("AIRNODE_TEST_DB")
	if !ok {
		t.Skip("AIRNODE_TEST_DB not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	p, err := ParamsFromRecord(record(payload.Update, averages{data.Pressure: 101325}))
	require.NoError(t, err)
	require.NoError(t, db.WriteUplink(ctx, p))
	// same id again is ignored
	require.NoError(t, db.WriteUplink(ctx, p))
}
