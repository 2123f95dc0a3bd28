// Package postgres keeps a history of every packet the node has sent.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/payload"
	"github.com/gr-butler/airnode/uplink"
)

const schema = `
CREATE TABLE IF NOT EXISTS uplinks (
	id          UUID PRIMARY KEY,
	sent_at     TIMESTAMPTZ NOT NULL,
	header      TEXT NOT NULL,
	packet      BYTEA NOT NULL,
	voltage     DOUBLE PRECISION,
	temperature DOUBLE PRECISION,
	humidity    DOUBLE PRECISION,
	voc         DOUBLE PRECISION,
	pressure    DOUBLE PRECISION,
	co2         DOUBLE PRECISION
)`

const writeUplink = `
INSERT INTO uplinks (id, sent_at, header, packet, voltage, temperature, humidity, voc, pressure, co2)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

type DB struct {
	db *sql.DB
}

// Open connects to dsn and creates the uplinks table if needed.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// WriteUplinkParams is one row of the uplinks table. Measurements are the
// values the receiver will decode, null where the packet carried a sentinel.
type WriteUplinkParams struct {
	ID          uuid.UUID
	SentAt      time.Time
	Header      string
	Packet      []byte
	Voltage     sql.NullFloat64
	Temperature sql.NullFloat64
	Humidity    sql.NullFloat64
	VOC         sql.NullFloat64
	Pressure    sql.NullFloat64
	CO2         sql.NullFloat64
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ParamsFromRecord(r uplink.Record) (WriteUplinkParams, error) {
	reading, err := payload.Decode(r.Packet.Bytes())
	if err != nil {
		return WriteUplinkParams{}, err
	}
	return WriteUplinkParams{
		ID:          r.ID,
		SentAt:      r.SentAt.UTC(),
		Header:      r.Header.String(),
		Packet:      r.Packet.Bytes(),
		Voltage:     nullable(reading.Voltage),
		Temperature: nullable(reading.Temperature),
		Humidity:    nullable(reading.Humidity),
		VOC:         nullable(reading.VOC),
		Pressure:    nullable(reading.Pressure),
		CO2:         nullable(reading.CO2),
	}, nil
}

func (d *DB) WriteUplink(ctx context.Context, p WriteUplinkParams) error {
	_, err := d.db.ExecContext(ctx, writeUplink,
		p.ID,
		p.SentAt,
		p.Header,
		p.Packet,
		p.Voltage,
		p.Temperature,
		p.Humidity,
		p.VOC,
		p.Pressure,
		p.CO2,
	)
	return err
}

type uplinkWriter interface {
	WriteUplink(ctx context.Context, p WriteUplinkParams) error
}

// Recorder writes uplink records from its own goroutine so the scheduler
// never waits on the database. Records arriving while the queue is full
// are dropped.
type Recorder struct {
	w       uplinkWriter
	records chan uplink.Record
}

func NewRecorder(w uplinkWriter, queue int) *Recorder {
	return &Recorder{w: w, records: make(chan uplink.Record, queue)}
}

func (r *Recorder) Record(rec uplink.Record) {
	select {
	case r.records <- rec:
	default:
		logger.Warnf("Uplink history queue full, dropping [%v]", rec.ID)
	}
}

// Run drains the queue until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-r.records:
			r.write(ctx, rec)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec uplink.Record) {
	p, err := ParamsFromRecord(rec)
	if err != nil {
		logger.Errorf("Unable to decode uplink [%v] [%v]", rec.ID, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.w.WriteUplink(ctx, p); err != nil {
		logger.Errorf("Failed to store uplink [%v] [%v]", rec.ID, err)
		return
	}
	logger.Debugf("Stored uplink [%v]", rec.ID)
}
