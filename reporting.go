package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/payload"
	"github.com/gr-butler/airnode/uplink"
)

// recorders hands every uplink record to each of its members.
type recorders []uplink.Recorder

func (r recorders) Record(rec uplink.Record) {
	for _, each := range r {
		each.Record(rec)
	}
}

/*
 * forwarder mirrors every sent packet to an HTTP endpoint as a GET with the
 * decoded reading in the query string, e.g.
 *
 *   FORWARD_URL=http://example.org/reading?
 *   -> http://example.org/reading?co2=812&header=UPDATE&humidity=45.5&id=...&pressure=101324
 *
 * Absent channels are left out of the query.
 */
type forwarder struct {
	baseUrl string
	client  *http.Client
	queue   chan uplink.Record
}

func newForwarder(baseUrl string) *forwarder {
	return &forwarder{
		baseUrl: baseUrl,
		client:  &http.Client{Timeout: time.Second * 30},
		queue:   make(chan uplink.Record, 16),
	}
}

func (f *forwarder) Record(rec uplink.Record) {
	select {
	case f.queue <- rec:
	default:
		logger.Warnf("Forward queue full, dropping [%v]", rec.ID)
	}
}

func (f *forwarder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-f.queue:
			if err := f.send(ctx, rec); err != nil {
				logger.Errorf("Failed to forward reading [%v] [%v]", rec.ID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (f *forwarder) values(rec uplink.Record) (url.Values, error) {
	reading, err := payload.Decode(rec.Packet.Bytes())
	if err != nil {
		return nil, err
	}
	vals, err := reading.Values()
	if err != nil {
		return nil, err
	}
	vals.Set("id", rec.ID.String())
	vals.Set("dateutc", rec.SentAt.UTC().Format("2006-01-02 15:04:05"))
	return vals, nil
}

func (f *forwarder) send(ctx context.Context, rec uplink.Record) error {
	vals, err := f.values(rec)
	if err != nil {
		return err
	}
	logger.Infof("Forwarding: [%v]", vals.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseUrl+vals.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Errorf("Forward rejected HTTP [%v]", resp.Status)
	}
	return nil
}
