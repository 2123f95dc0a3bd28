package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var ChannelAverage = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "airnode_channel_average",
		Help: "Rolling average of a channel at the last uplink",
	},
	[]string{"channel"},
)

var SamplesFed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "airnode_samples_total",
		Help: "Samples fed into a channel stream",
	},
	[]string{"channel"},
)

var SampleFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "airnode_sample_failures_total",
		Help: "Sensor reads that failed",
	},
	[]string{"channel"},
)

var UplinksSent = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "airnode_uplinks_total",
		Help: "Packets handed to the transport",
	},
)

var UplinkFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "airnode_uplink_failures_total",
		Help: "Packets the transport refused",
	},
)

var TransportWaits = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "airnode_transport_not_ready_total",
		Help: "Uplink attempts deferred because the transport was not ready",
	},
)

var CalibrationCounter = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "airnode_co2_calibration_counter",
		Help: "Remaining CO2 calibration ticks, 0 when idle",
	},
)

var CalibrationFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "airnode_co2_calibration_failures_total",
		Help: "Calibration actions the CO2 sensor rejected",
	},
)

func init() {
	prometheus.MustRegister(
		ChannelAverage,
		SamplesFed,
		SampleFailures,
		UplinksSent,
		UplinkFailures,
		TransportWaits,
		CalibrationCounter,
		CalibrationFailures)
}
