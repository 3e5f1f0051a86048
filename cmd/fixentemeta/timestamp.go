package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// timestampKeys are the top-level sidecar keys checked for a capture time, in
// order. Ente and Google Takeout both nest the value as {"timestamp": "..."}.
var timestampKeys = []string{"photoTakenTime", "creationTime", "dateTaken", "timestamp"}

// Epoch values above this are milliseconds (year > 5138 in seconds).
const millisecondThreshold = 100000000000

// extractTimestamp reads a sidecar and returns the capture time it records, in UTC.
func extractTimestamp(sidecarPath string) (time.Time, error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reading %s: %v", ErrMissingField, sidecarPath, err)
	}
	return parseSidecar(data)
}

// parseSidecar extracts the capture time from a sidecar document.
func parseSidecar(data []byte) (time.Time, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid JSON: %v", ErrMissingField, err)
	}

	for _, key := range timestampKeys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		if t, ok := parseTimestampValue(unwrapTimestamp(raw)); ok {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: none of %s present", ErrMissingField, strings.Join(timestampKeys, ", "))
}

// unwrapTimestamp returns the inner "timestamp" member when raw is an object.
func unwrapTimestamp(raw json.RawMessage) json.RawMessage {
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return raw
	}
	if inner, ok := nested["timestamp"]; ok {
		return inner
	}
	return raw
}

func parseTimestampValue(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return time.Time{}, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		return parseTimestampString(s)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, false
	}
	return fromEpoch(n)
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(float64(n))
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(n)
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return t, exifEncodable(t)
		}
	}
	return time.Time{}, false
}

func fromEpoch(n float64) (time.Time, bool) {
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) >= math.MaxInt64 {
		return time.Time{}, false
	}
	var t time.Time
	if math.Abs(n) > millisecondThreshold {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		sec, frac := math.Modf(n)
		t = time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	}
	return t, exifEncodable(t)
}

// exifEncodable reports whether t fits the four-digit EXIF year.
func exifEncodable(t time.Time) bool {
	return t.Year() >= 1 && t.Year() <= 9999
}
