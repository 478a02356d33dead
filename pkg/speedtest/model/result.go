package model

import "encoding/json"

// bitsPerMegabit converts bits per second to megabits per second.
const bitsPerMegabit = 1e6

// ClientInfo describes the host running the measurement, as reported by the
// measurement tool. Values are passed through verbatim.
type ClientInfo struct {
	Country   string `json:"country"`
	IP        string `json:"ip"`
	ISP       string `json:"isp"`
	ISPDLAvg  string `json:"ispdlavg"`
	ISPRating string `json:"isprating"`
	ISPULAvg  string `json:"ispulavg"`
	Lat       string `json:"lat"`
	LoggedIn  string `json:"loggedin"`
	Lon       string `json:"lon"`
	Rating    string `json:"rating"`
}

// ServerInfo describes the server the measurement ran against.
type ServerInfo struct {
	CC      string `json:"cc"`
	Country string `json:"country"`
	// D is the distance to the server in kilometers.
	D    float64 `json:"d"`
	Host string  `json:"host"`
	ID   string  `json:"id"`
	Lat  string  `json:"lat"`
	// Latency is the latency to the server observed during server selection (ms).
	Latency float64 `json:"latency"`
	Lon     string  `json:"lon"`
	Name    string  `json:"name"`
	Sponsor string  `json:"sponsor"`
	URL     string  `json:"url"`
}

// RawMeasurement is the measurement tool's output for a single run.
type RawMeasurement struct {
	BytesReceived int64
	BytesSent     int64
	// Download is the download rate in bits per second.
	Download float64
	// Upload is the upload rate in bits per second.
	Upload float64
	// Ping is the latency in milliseconds.
	Ping   float64
	Client ClientInfo
	Server ServerInfo
	// Share is an opaque payload the tool may attach. Nil when absent.
	Share json.RawMessage
	// Timestamp is the tool-reported ISO-8601 time of the measurement.
	Timestamp string
}

// Result is the measurement served to clients. It is derived from a
// RawMeasurement by FromRaw and never modified afterwards.
type Result struct {
	BytesReceived int64   `json:"bytes_received"`
	BytesSent     int64   `json:"bytes_sent"`
	DownloadBPS   float64 `json:"download_bps"`
	UploadBPS     float64 `json:"upload_bps"`
	// DownloadMbps is always DownloadBPS / 1e6.
	DownloadMbps float64 `json:"download_mbps"`
	// UploadMbps is always UploadBPS / 1e6.
	UploadMbps float64         `json:"upload_mbps"`
	PingMS     float64         `json:"ping_ms"`
	Client     ClientInfo      `json:"client"`
	Server     ServerInfo      `json:"server"`
	Share      json.RawMessage `json:"share"`
	Timestamp  string          `json:"timestamp"`
}

// FromRaw converts a RawMeasurement into a Result.
func FromRaw(raw RawMeasurement) Result {
	return Result{
		BytesReceived: raw.BytesReceived,
		BytesSent:     raw.BytesSent,
		DownloadBPS:   raw.Download,
		UploadBPS:     raw.Upload,
		DownloadMbps:  ToMbps(raw.Download),
		UploadMbps:    ToMbps(raw.Upload),
		PingMS:        raw.Ping,
		Client:        raw.Client,
		Server:        raw.Server,
		Share:         cloneRaw(raw.Share),
		Timestamp:     raw.Timestamp,
	}
}

// ToMbps converts a rate in bits per second to megabits per second.
func ToMbps(bps float64) float64 {
	return bps / bitsPerMegabit
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	r.Share = cloneRaw(r.Share)
	return r
}

// Consistent reports whether the megabit rates of r match its bit rates.
func (r Result) Consistent() bool {
	return r.DownloadMbps == ToMbps(r.DownloadBPS) &&
		r.UploadMbps == ToMbps(r.UploadBPS)
}

func cloneRaw(m json.RawMessage) json.RawMessage {
	if m == nil {
		return nil
	}
	c := make(json.RawMessage, len(m))
	copy(c, m)
	return c
}
