package primitives

import "math"

// Never is the sentinel for a close time that has not happened.
var Never = math.Inf(1)

// Sample is one timestamped value of a channel.
type Sample struct {
	Time    float64 `json:"time" msgpack:"time" yaml:"time"`
	Payload any     `json:"payload" msgpack:"payload" yaml:"payload"`
}

// Snapshot maps instance id -> channel name -> latest sample.
type Snapshot map[string]map[string]Sample

// Clone returns a copy that shares no maps with s. Payloads are copied by
// reference; they are treated as immutable once stored.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, chans := range s {
		c := make(map[string]Sample, len(chans))
		for name, sample := range chans {
			c[name] = sample
		}
		out[id] = c
	}
	return out
}

// Len counts samples across all instances.
func (s Snapshot) Len() int {
	n := 0
	for _, chans := range s {
		n += len(chans)
	}
	return n
}

// Newest returns the largest sample time for id, or -Inf when id has none.
func (s Snapshot) Newest(id string) float64 {
	newest := math.Inf(-1)
	for _, sample := range s[id] {
		if sample.Time > newest {
			newest = sample.Time
		}
	}
	return newest
}
