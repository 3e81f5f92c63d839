// README: Slot record assembled for one conversation, plus the per-turn change report.
package slots

import (
	"sort"
	"strings"
)

type Field string

const (
	FieldOrigin      Field = "origin"
	FieldDestination Field = "destination"
	FieldDate        Field = "date"
	FieldTransport   Field = "transport"
)

// Fields is the fixed question order.
var Fields = []Field{FieldOrigin, FieldDestination, FieldDate, FieldTransport}

type Transport string

const (
	TransportBus   Transport = "bus"
	TransportTrain Transport = "train"
	TransportPlane Transport = "plane"
)

// ParseTransportCode accepts the canonical transport codes only.
func ParseTransportCode(s string) (Transport, bool) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case TransportBus:
		return TransportBus, true
	case TransportTrain:
		return TransportTrain, true
	case TransportPlane:
		return TransportPlane, true
	}
	return "", false
}

// SlotSet holds the four trip parameters. An empty string means unknown.
type SlotSet struct {
	Origin      string            `json:"origin,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Date        string            `json:"date,omitempty"`
	Transport   Transport         `json:"transport,omitempty"`
	Confidence  map[Field]float64 `json:"confidence,omitempty"`
}

func (s SlotSet) Get(f Field) string {
	switch f {
	case FieldOrigin:
		return s.Origin
	case FieldDestination:
		return s.Destination
	case FieldDate:
		return s.Date
	case FieldTransport:
		return string(s.Transport)
	}
	return ""
}

// Set writes v into f and records its confidence. An empty v clears the field.
func (s *SlotSet) Set(f Field, v string, conf float64) {
	switch f {
	case FieldOrigin:
		s.Origin = v
	case FieldDestination:
		s.Destination = v
	case FieldDate:
		s.Date = v
	case FieldTransport:
		s.Transport = Transport(v)
	default:
		return
	}
	if v == "" {
		delete(s.Confidence, f)
		return
	}
	if s.Confidence == nil {
		s.Confidence = make(map[Field]float64, len(Fields))
	}
	s.Confidence[f] = clamp01(conf)
}

// Conf returns the recorded confidence of f, 0 when the field is unknown.
func (s SlotSet) Conf(f Field) float64 {
	if s.Get(f) == "" {
		return 0
	}
	c, ok := s.Confidence[f]
	if !ok {
		return 1
	}
	return c
}

// Filled counts the known fields.
func (s SlotSet) Filled() int {
	n := 0
	for _, f := range Fields {
		if s.Get(f) != "" {
			n++
		}
	}
	return n
}

func (s SlotSet) IsEmpty() bool { return s.Filled() == 0 }

// Missing lists unknown fields in question order.
func (s SlotSet) Missing() []Field {
	var out []Field
	for _, f := range Fields {
		if s.Get(f) == "" {
			out = append(out, f)
		}
	}
	return out
}

// LowConfidence returns the first known field whose confidence is below threshold.
func (s SlotSet) LowConfidence(threshold float64) (Field, bool) {
	for _, f := range Fields {
		if s.Get(f) != "" && s.Conf(f) < threshold {
			return f, true
		}
	}
	return "", false
}

// Subset copies only the listed fields.
func (s SlotSet) Subset(fields []Field) SlotSet {
	var out SlotSet
	for _, f := range fields {
		if v := s.Get(f); v != "" {
			out.Set(f, v, s.Conf(f))
		}
	}
	return out
}

func (s SlotSet) Clone() SlotSet {
	out := s
	if s.Confidence != nil {
		out.Confidence = make(map[Field]float64, len(s.Confidence))
		for k, v := range s.Confidence {
			out.Confidence[k] = v
		}
	}
	return out
}

// ChangeSet maps a field to its corrected value. First-time fills are not recorded.
type ChangeSet map[Field]string

// Fields returns the changed fields in question order.
func (c ChangeSet) Fields() []Field {
	out := make([]Field, 0, len(c))
	for f := range c {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return fieldIndex(out[i]) < fieldIndex(out[j]) })
	return out
}

func fieldIndex(f Field) int {
	for i, x := range Fields {
		if x == f {
			return i
		}
	}
	return len(Fields)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
