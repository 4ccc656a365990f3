package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a human-friendly duration for YAML/JSON config: strings
// like "5s" or "2m" parse via time.ParseDuration, bare numbers are
// interpreted as seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration node: kind=%d value=%q", value.Kind, value.Value)
	}
	s := strings.TrimSpace(value.Value)
	switch value.Tag {
	case "!!str":
		if s == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = dd
		return nil
	case "!!int":
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid duration seconds %q: %w", s, err)
		}
		d.Duration = time.Duration(secs) * time.Second
		return nil
	case "!!float":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid duration seconds %q: %w", s, err)
		}
		d.Duration = time.Duration(f * float64(time.Second))
		return nil
	}
	return fmt.Errorf("unsupported duration tag %s", value.Tag)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(str)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", str, err)
		}
		d.Duration = dd
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = time.Duration(f * float64(time.Second))
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }
