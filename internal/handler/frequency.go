package handler

import (
	"fmt"
	"strings"
)

// Frequency is the idempotence class of a handler or of a processing pass.
type Frequency string

const (
	// FrequencyOnce runs at most once ever.
	FrequencyOnce Frequency = "once"
	// FrequencyOncePerInstance runs once per provisioned instance.
	FrequencyOncePerInstance Frequency = "once-per-instance"
	// FrequencyAlways runs on every pass regardless of prior runs.
	FrequencyAlways Frequency = "always"
)

// Valid reports whether f is one of the known frequency classes.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyOncePerInstance, FrequencyAlways:
		return true
	}
	return false
}

func (f Frequency) String() string {
	return string(f)
}

// ParseFrequency converts s into a Frequency. Underscores are accepted in place
// of dashes ("once_per_instance").
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !f.Valid() {
		return "", fmt.Errorf("invalid frequency %q (valid: once, once-per-instance, always)", s)
	}
	return f, nil
}

// Admits reports whether a handler declaring f may run during a pass whose
// requested frequency is requested.
func (f Frequency) Admits(requested Frequency) bool {
	return f == FrequencyAlways || f == requested
}
