package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
)

// durationKeys are the timeout settings. YAML numbers under them are read
// as seconds.
var durationKeys = []string{"llm.timeout", "tools.timeout", "server.shutdown_timeout"}

// maxTimeout bounds every timeout setting.
const maxTimeout = 24 * time.Hour

// Duration is a timeout setting. It accepts Go duration strings ("90s",
// "2m") and bare numbers of seconds ("120"), the form LLM_TIMEOUT and the
// older proxy settings use.
type Duration time.Duration

// ParseDuration parses a timeout setting.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: use seconds or a Go duration such as 90s", s)
		}
		d = parsed
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	if d > maxTimeout {
		return 0, fmt.Errorf("duration %s exceeds %s", s, maxTimeout)
	}
	return Duration(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// normalizeDurations rewrites numeric timeouts as strings so they decode
// through UnmarshalText instead of as nanoseconds.
func normalizeDurations(k *koanf.Koanf) error {
	for _, key := range durationKeys {
		switch v := k.Get(key).(type) {
		case int, int64, float64:
			if err := k.Set(key, fmt.Sprint(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

// Secret holds the backend API key. It prints and encodes as [REDACTED];
// Value returns the key itself.
type Secret string

func (s Secret) redacted() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// String implements fmt.Stringer.
func (s Secret) String() string { return s.redacted() }

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string { return "Secret(" + s.redacted() + ")" }

// Value returns the key.
func (s Secret) Value() string { return string(s) }

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.redacted())
}

// UnmarshalText accepts the raw key.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
