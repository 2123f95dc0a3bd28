package status

import (
	"fmt"

	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/payload"
)

// Line is one channel of the status report.
type Line struct {
	Channel data.Channel `json:"-"`
	Name    string       `json:"name"`
	Value   *float64     `json:"value"`
	Unit    string       `json:"unit"`
}

// String renders the line at the channel's precision, with an empty value
// field when the channel has no average.
func (l Line) String() string {
	if l.Value == nil {
		return fmt.Sprintf("$STATUS: \"%s\",", l.Name)
	}
	return fmt.Sprintf("$STATUS: \"%s\",%.*f", l.Name, l.Channel.Precision(), *l.Value)
}

// Report reads every channel's average in report order. It never touches the streams.
func Report(s payload.Averager) []Line {
	lines := make([]Line, 0, len(data.Channels))
	for _, ch := range data.Channels {
		l := Line{Channel: ch, Name: ch.String(), Unit: ch.Unit()}
		if v, ok := s.Average(ch); ok {
			l.Value = &v
		}
		lines = append(lines, l)
	}
	return lines
}
