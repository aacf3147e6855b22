package models

import (
	"encoding/json"
	"strings"
)

// Profile describes the person the health data belongs to.
type Profile struct {
	// AgeYears is the person's age in whole years.
	AgeYears int `json:"age_years,omitempty"`
	// Sex is "male" or "female"; used by the Mifflin-St Jeor equation.
	Sex string `json:"sex,omitempty"`
	// HeightCm is height in centimeters.
	HeightCm float64 `json:"height_cm,omitempty"`
	// WeightKg is weight in kilograms.
	WeightKg float64 `json:"weight_kg,omitempty"`
	// ActivityLevel selects the TDEE activity factor
	// (sedentary, light, moderate, active, very_active).
	ActivityLevel string `json:"activity_level,omitempty"`
}

// HasBody returns true when both height and weight are present.
func (p Profile) HasBody() bool {
	return p.HeightCm > 0 && p.WeightKg > 0
}

// ActivityFactor returns the Mifflin-St Jeor activity multiplier for the
// profile's activity level. Unknown or empty levels map to sedentary.
func (p Profile) ActivityFactor() float64 {
	switch strings.ToLower(strings.TrimSpace(p.ActivityLevel)) {
	case "light":
		return 1.375
	case "moderate":
		return 1.55
	case "active":
		return 1.725
	case "very_active", "very active":
		return 1.9
	default:
		return 1.2
	}
}

// DailyLog is one day of tracked health metrics. Unknown fields are kept in
// Extra so normalization passes through a superset of the input.
type DailyLog struct {
	Date        string         `json:"date,omitempty"`
	Steps       int            `json:"steps,omitempty"`
	SleepHours  float64        `json:"sleep_hours,omitempty"`
	Workouts    int            `json:"workouts,omitempty"`
	WaterLiters float64        `json:"water_liters,omitempty"`
	Calories    float64        `json:"calories,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// dailyLogFields are DailyLog's own JSON keys; any other key in a decoded
// log round-trips through Extra.
var dailyLogFields = []string{"date", "steps", "sleep_hours", "workouts", "water_liters", "calories", "extra"}

// UnmarshalJSON captures unrecognized keys into Extra instead of dropping
// them, so a decoded log is a superset of the input.
func (d *DailyLog) UnmarshalJSON(data []byte) error {
	type alias DailyLog
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extraFields(data, dailyLogFields)
	if err != nil {
		return err
	}
	*d = DailyLog(known)
	mergeExtra(&d.Extra, extra)
	return nil
}

// MarshalJSON emits Extra entries as top-level keys, mirroring
// UnmarshalJSON. Extra keys that collide with a declared field are dropped.
func (d DailyLog) MarshalJSON() ([]byte, error) {
	type alias DailyLog
	shadow := alias(d)
	shadow.Extra = nil
	base, err := json.Marshal(shadow)
	if err != nil {
		return nil, err
	}
	return marshalWithExtra(base, d.Extra, dailyLogFields)
}

// HealthPayload is the opaque data carried by a Task: the original request
// fields plus anything accumulated from completed stages.
type HealthPayload struct {
	// Profile is the subject's profile, if supplied.
	Profile Profile `json:"profile,omitempty"`
	// Targets maps a metric name (steps, sleep_hours, workouts,
	// water_liters, calories) to its weekly target value.
	Targets map[string]float64 `json:"targets,omitempty"`
	// DailyLogs is the sequence of daily log records.
	DailyLogs []DailyLog `json:"daily_logs,omitempty"`
	// Message is a free-text coaching request, if any.
	Message string `json:"message,omitempty"`
	// Extra preserves unknown top-level fields across decode and encode.
	Extra map[string]any `json:"extra,omitempty"`
}

var healthPayloadFields = []string{"profile", "targets", "daily_logs", "message", "extra"}

// UnmarshalJSON captures unrecognized top-level keys into Extra. Nested
// DailyLogs do the same for their own unknown keys.
func (h *HealthPayload) UnmarshalJSON(data []byte) error {
	type alias HealthPayload
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extraFields(data, healthPayloadFields)
	if err != nil {
		return err
	}
	*h = HealthPayload(known)
	mergeExtra(&h.Extra, extra)
	return nil
}

// MarshalJSON emits Extra entries as top-level keys, mirroring
// UnmarshalJSON.
func (h HealthPayload) MarshalJSON() ([]byte, error) {
	type alias HealthPayload
	shadow := alias(h)
	shadow.Extra = nil
	base, err := json.Marshal(shadow)
	if err != nil {
		return nil, err
	}
	return marshalWithExtra(base, h.Extra, healthPayloadFields)
}

// extraFields decodes the keys of data not named in fields.
func extraFields(data []byte, fields []string) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, f := range fields {
		delete(raw, f)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

func mergeExtra(dst *map[string]any, src map[string]any) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = src
		return
	}
	for k, v := range src {
		(*dst)[k] = v
	}
}

// marshalWithExtra merges extra into an already-marshaled object, skipping
// keys that belong to the declared field set.
func marshalWithExtra(base []byte, extra map[string]any, fields []string) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	for k, v := range extra {
		if !known[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy so stages can normalize without sharing state.
func (h HealthPayload) Clone() HealthPayload {
	out := h
	if h.Targets != nil {
		out.Targets = make(map[string]float64, len(h.Targets))
		for k, v := range h.Targets {
			out.Targets[k] = v
		}
	}
	if h.DailyLogs != nil {
		out.DailyLogs = make([]DailyLog, len(h.DailyLogs))
		copy(out.DailyLogs, h.DailyLogs)
		for i, l := range h.DailyLogs {
			if l.Extra != nil {
				ex := make(map[string]any, len(l.Extra))
				for k, v := range l.Extra {
					ex[k] = v
				}
				out.DailyLogs[i].Extra = ex
			}
		}
	}
	if h.Extra != nil {
		out.Extra = make(map[string]any, len(h.Extra))
		for k, v := range h.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Empty returns true when the payload carries no usable data at all.
func (h HealthPayload) Empty() bool {
	return h.Profile == (Profile{}) && len(h.Targets) == 0 &&
		len(h.DailyLogs) == 0 && h.Message == "" && len(h.Extra) == 0
}
