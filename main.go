package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jacobsa/go-serial/serial"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/calibration"
	"github.com/gr-butler/airnode/console"
	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/db/postgres"
	"github.com/gr-butler/airnode/env"
	"github.com/gr-butler/airnode/led"
	"github.com/gr-butler/airnode/node"
	"github.com/gr-butler/airnode/payload"
	"github.com/gr-butler/airnode/sampling"
	"github.com/gr-butler/airnode/sensors"
	"github.com/gr-butler/airnode/transport"
	"github.com/gr-butler/airnode/uplink"
)

const version = "GRB-AirNode-1.0.0"

type airnode struct {
	n    *node.Node
	args env.Args
}

func main() {
	args := env.Args{
		Test:    flag.Bool("test", false, "test mode, simulated sensors and no GPIO"),
		Verbose: flag.Bool("verbose", false, "debug logging"),
		Port:    flag.Int("port", env.DefaultPort, "uplink port"),
		Bus:     flag.String("bus", "", "I²C bus (/dev/i2c-1)"),
		Serial:  flag.String("serial", "", "console serial device, stdin when empty"),
		Listen:  flag.String("listen", ":8080", "status and metrics address"),
	}
	flag.Parse()

	if *args.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	logger.Infof("Starting air node [%v]", version)
	if *args.Test {
		logger.Info("TEST MODE")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &airnode{args: args}

	in, out := consolePort(*args.Serial)
	con := console.New(out)

	var indicator *led.LED
	var sensorMap map[data.Channel]sampling.Sensor
	var calibrator calibration.Calibrator
	if *args.Test {
		indicator = led.NewLED("Status", nil)
		sensorMap, calibrator = simulatedSensors()
	} else {
		indicator = led.ByName("Status", env.StatusLed)
		s, err := sensors.InitSensors(*args.Bus)
		if err != nil {
			logger.Fatalf("Failed to initialise sensors!! [%v]", err)
		}
		defer s.Close()
		sensorMap, calibrator = hardwareSensors(ctx, s)
	}
	defer indicator.Close()

	recs := recorders{}
	if dsn, ok := os.LookupEnv("AIRNODE_DB"); ok {
		db, err := postgres.Open(ctx, dsn)
		if err != nil {
			logger.Errorf("Uplink history disabled [%v]", err)
		} else {
			defer db.Close()
			r := postgres.NewRecorder(db, 32)
			go r.Run(ctx)
			recs = append(recs, r)
		}
	}
	if forwardUrl, ok := os.LookupEnv("FORWARD_URL"); ok {
		f := newForwarder(forwardUrl)
		go f.Run(ctx)
		recs = append(recs, f)
	}

	tr, connect := a.transport()

	a.n = node.New(node.Config{
		Sensors:    sensorMap,
		Calibrator: calibrator,
		Indicator:  indicator,
		Transport:  tr,
		Notify:     con,
		Recorder:   recs,
	})
	connect()

	if !*args.Test {
		button, err := sensors.NewButton(env.ButtonIn, a.n.Press)
		if err != nil {
			logger.Errorf("No button [%v]", err)
		} else {
			go button.Run(ctx)
		}
	}

	go func() {
		exec := func(line string) []string { return a.n.Exec(ctx, line) }
		if err := con.Serve(in, exec); err != nil {
			logger.Errorf("Console closed [%v]", err)
		}
	}()

	go a.serveHttp(ctx)

	if err := a.n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Scheduler stopped [%v]", err)
	}
	logger.Info("Exiting...")
}

func consolePort(device string) (io.Reader, io.Writer) {
	if device == "" {
		return os.Stdin, os.Stdout
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		logger.Fatalf("Failed to open console [%v] [%v]", device, err)
	}
	logger.Infof("Console on [%v]", device)
	return port, port
}

func simulatedSensors() (map[data.Channel]sampling.Sensor, calibration.Calibrator) {
	co2 := sensors.NewSimulated(650, 50, 6)
	return map[data.Channel]sampling.Sensor{
		data.Voltage:     sensors.NewSimulated(3.6, 0.1, 1),
		data.Temperature: sensors.NewSimulated(21, 1.5, 2),
		data.Humidity:    sensors.NewSimulated(45, 5, 3),
		data.VOC:         sensors.NewSimulated(120, 40, 4),
		data.Pressure:    sensors.NewSimulated(101325, 300, 5),
		data.CO2:         co2,
	}, co2
}

func hardwareSensors(ctx context.Context, s *sensors.Sensors) (map[data.Channel]sampling.Sensor, calibration.Calibrator) {
	m := map[data.Channel]sampling.Sensor{
		data.CO2: s.CO2,
		data.VOC: s.VOC,
	}
	go s.VOC.Run(ctx)
	if s.Atm != nil {
		m[data.Temperature] = sampling.SensorFunc(s.Atm.Temperature)
		m[data.Humidity] = sampling.SensorFunc(s.Atm.Humidity)
		m[data.Pressure] = sampling.SensorFunc(s.Atm.Pressure)
	}
	if s.Battery != nil {
		m[data.Voltage] = s.Battery
	}
	return m, s.CO2
}

// transport returns the uplink transport and a function that starts it
// once the node exists to receive its events.
func (a *airnode) transport() (uplink.Transport, func()) {
	broker, ok := os.LookupEnv("MQTT_BROKER")
	if !ok {
		logger.Warn("MQTT_BROKER not set, packets are only logged")
		return logTransport{}, func() {}
	}
	topic, ok := os.LookupEnv("MQTT_TOPIC")
	if !ok {
		topic = env.DefaultTopic
	}

	var tr *transport.MQTT
	events := func(e transport.Event) {
		if e == transport.JoinOK {
			go a.subscribe(tr)
		}
		a.n.Event(e)
	}
	client := mqtt.NewClient(transport.Options(broker, transport.ClientID(topic), events))
	tr = transport.NewMQTT(client, topic, *a.args.Port, events)

	return tr, func() {
		logger.Infof("Connecting to [%v] topic [%v] port [%v]", broker, topic, *a.args.Port)
		// retries in the background until the broker answers
		client.Connect()
	}
}

func (a *airnode) subscribe(tr *transport.MQTT) {
	err := tr.Commands(func(line string) string {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reply, _ := json.Marshal(a.n.Exec(ctx, line))
		return string(reply)
	})
	if err != nil {
		logger.Errorf("Remote commands unavailable [%v]", err)
	}
}

// logTransport stands in when no broker is configured.
type logTransport struct{}

func (logTransport) Ready() bool {
	return true
}

func (logTransport) Send(p payload.Packet) error {
	logger.Infof("Uplink [%v]", p.Hex())
	return nil
}

func (a *airnode) serveHttp(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handler)
	sendData, ok := os.LookupEnv("SENDPROMDATA")
	if ok && sendData == "true" {
		logger.Info("Exposing /metrics")
		mux.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{Addr: *a.args.Listen, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	logger.Infof("Starting webservice on [%v]", *a.args.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Webservice stopped [%v]", err)
	}
}

func (a *airnode) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	snap, err := a.n.Snapshot(r.Context())
	if err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}

	js, err := json.Marshal(snap)
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Debugf("Web read: \n[%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}
