package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when the measurement tool's output cannot be
// parsed into a RawMeasurement.
var ErrMalformed = errors.New("malformed speedtest output")

// Every field of the client and server descriptors must be present.
var (
	clientFields = []string{"country", "ip", "isp", "ispdlavg", "isprating",
		"ispulavg", "lat", "loggedin", "lon", "rating"}
	serverFields = []string{"cc", "country", "d", "host", "id", "lat",
		"latency", "lon", "name", "sponsor", "url"}
)

// wireMeasurement mirrors the tool's JSON output. Pointer fields are
// required and must be present in the input. Descriptors are decoded
// separately so that their fields can be checked for presence.
type wireMeasurement struct {
	BytesReceived *int64          `json:"bytes_received"`
	BytesSent     *int64          `json:"bytes_sent"`
	Download      *float64        `json:"download"`
	Upload        *float64        `json:"upload"`
	Ping          *float64        `json:"ping"`
	Client        json.RawMessage `json:"client"`
	Server        json.RawMessage `json:"server"`
	Share         json.RawMessage `json:"share"`
	Timestamp     *string         `json:"timestamp"`
}

func isNull(m json.RawMessage) bool {
	return len(m) == 0 || bytes.Equal(m, []byte("null"))
}

// decodeDescriptor decodes raw into dst after checking that raw is an object
// with a non-null value for each of fields.
func decodeDescriptor(name string, raw json.RawMessage, dst interface{}, fields []string) error {
	if isNull(raw) {
		return fmt.Errorf("%w: missing field %q", ErrMalformed, name)
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	for _, f := range fields {
		if v, ok := present[f]; !ok || isNull(v) {
			return fmt.Errorf("%w: missing field %q", ErrMalformed, name+"."+f)
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return nil
}

// ParseRaw decodes the tool's JSON output into a RawMeasurement.
func ParseRaw(raw []byte) (RawMeasurement, error) {
	var w wireMeasurement
	if err := json.Unmarshal(raw, &w); err != nil {
		return RawMeasurement{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	missing := func(field string) error {
		return fmt.Errorf("%w: missing field %q", ErrMalformed, field)
	}
	switch {
	case w.BytesReceived == nil:
		return RawMeasurement{}, missing("bytes_received")
	case w.BytesSent == nil:
		return RawMeasurement{}, missing("bytes_sent")
	case w.Download == nil:
		return RawMeasurement{}, missing("download")
	case w.Upload == nil:
		return RawMeasurement{}, missing("upload")
	case w.Ping == nil:
		return RawMeasurement{}, missing("ping")
	case w.Timestamp == nil:
		return RawMeasurement{}, missing("timestamp")
	case *w.BytesReceived < 0:
		return RawMeasurement{}, fmt.Errorf("%w: negative bytes_received", ErrMalformed)
	case *w.BytesSent < 0:
		return RawMeasurement{}, fmt.Errorf("%w: negative bytes_sent", ErrMalformed)
	}

	var client ClientInfo
	if err := decodeDescriptor("client", w.Client, &client, clientFields); err != nil {
		return RawMeasurement{}, err
	}
	var server ServerInfo
	if err := decodeDescriptor("server", w.Server, &server, serverFields); err != nil {
		return RawMeasurement{}, err
	}

	m := RawMeasurement{
		BytesReceived: *w.BytesReceived,
		BytesSent:     *w.BytesSent,
		Download:      *w.Download,
		Upload:        *w.Upload,
		Ping:          *w.Ping,
		Client:        client,
		Server:        server,
		Timestamp:     *w.Timestamp,
	}
	// An explicit null share is the same as no share at all.
	if !isNull(w.Share) {
		m.Share = w.Share
	}
	return m, nil
}

// Parse decodes the tool's JSON output and converts it to a Result.
func Parse(raw []byte) (*Result, error) {
	m, err := ParseRaw(raw)
	if err != nil {
		return nil, err
	}
	r := FromRaw(m)
	return &r, nil
}
