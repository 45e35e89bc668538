package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
)

var durationSpec = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses a duration spec such as "15m" or "7d": a non-negative
// integer followed by one of s, m, h or d.
func ParseDuration(spec string) (time.Duration, error) {
	m := durationSpec.FindStringSubmatch(spec)
	if m == nil {
		return 0, apperr.New(apperr.Config, fmt.Sprintf("invalid duration %q: want <int><s|m|h|d>", spec))
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.Config, fmt.Sprintf("invalid duration %q", spec), err)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n > int64(1<<63-1)/int64(unit) {
		return 0, apperr.New(apperr.Config, fmt.Sprintf("invalid duration %q: out of range", spec))
	}
	return time.Duration(n) * unit, nil
}
