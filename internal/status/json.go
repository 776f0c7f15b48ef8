package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Program          string        `json:"program"`
	Phase            string        `json:"phase"`
	StopReason       string        `json:"stop_reason,omitempty"`
	Ticks            int           `json:"ticks"`
	Errors           int           `json:"errors"`
	LastError        string        `json:"last_error,omitempty"`
	UptimeSeconds    int64         `json:"uptime_seconds"`
	RunSeconds       float64       `json:"run_seconds"`
	InitTime         string        `json:"init_time"`
	StartTime        string        `json:"start_time,omitempty"`
	Timestamp        string        `json:"timestamp"`
	MQTT             MQTTStatus    `json:"mqtt"`
	GamepadConnected bool          `json:"gamepad_connected"`
	Telemetry        []SectionJSON `json:"telemetry"`
	Config           ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// SectionJSON is one telemetry section with its lines in order.
type SectionJSON struct {
	Name  string     `json:"name"`
	Lines []LineJSON `json:"lines"`
}

// LineJSON is one telemetry key/value.
type LineJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConfigJSON is the JSON representation of runtime config.
type ConfigJSON struct {
	Backend     string `json:"backend"`
	Lifecycle   string `json:"lifecycle"`
	LoopMs      int64  `json:"loop_ms"`
	TelemetryMs int64  `json:"telemetry_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

// Sections groups the snapshot's frame by section, preserving order.
func Sections(snap Snapshot) []SectionJSON {
	out := []SectionJSON{}
	index := map[string]int{}
	for _, l := range snap.Frame.Lines {
		i, ok := index[l.Section]
		if !ok {
			i = len(out)
			index[l.Section] = i
			out = append(out, SectionJSON{Name: l.Section})
		}
		out[i].Lines = append(out[i].Lines, LineJSON{Key: l.Key, Value: l.Value})
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Program:          snap.Config.Program,
		Phase:            string(snap.Phase),
		StopReason:       snap.StopReason,
		Ticks:            snap.Ticks,
		Errors:           snap.Errors,
		LastError:        snap.LastError,
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		RunSeconds:       snap.RunTime().Truncate(time.Millisecond).Seconds(),
		InitTime:         snap.InitTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		GamepadConnected: snap.GamepadConnected,
		Telemetry:        Sections(snap),
		Config: ConfigJSON{
			Backend:     snap.Config.Backend,
			Lifecycle:   snap.Config.Lifecycle,
			LoopMs:      snap.Config.LoopMs,
			TelemetryMs: snap.Config.TelemetryMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if inner.Phase == "" {
		inner.Phase = "UNKNOWN"
	}
	if !snap.StartTime.IsZero() {
		inner.StartTime = snap.StartTime.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
