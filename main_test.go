package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gr-butler/airnode/console"
	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/node"
)

func Test_airnode_handler(t *testing.T) {
	sensorMap, calibrator := simulatedSensors()
	a := &airnode{n: node.New(node.Config{
		Sensors:    sensorMap,
		Calibrator: calibrator,
		Transport:  logTransport{},
		Notify:     console.New(io.Discard),
	})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.n.Run(ctx) }()

	rw := httptest.NewRecorder()
	a.handler(rw, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, 200, rw.Code)
	assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))

	snap := node.Snapshot{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &snap))
	assert.Equal(t, "BOOT", snap.Header)
	assert.Equal(t, "idle", snap.Calibration)
	require.Len(t, snap.Channels, len(data.Channels))
	assert.Equal(t, "Voltage", snap.Channels[0].Name)
}

func TestSimulatedSensorsCoverEveryChannel(t *testing.T) {
	sensorMap, calibrator := simulatedSensors()
	for _, ch := range data.Channels {
		assert.Contains(t, sensorMap, ch)
	}
	assert.NoError(t, calibrator.Calibrate())
}
