package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func String(name string, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Bool(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Seconds reads an integer number of seconds; negative values clamp to zero.
func Seconds(name string, def int) time.Duration {
	n := Int(name, def)
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Second
}

// Millis reads an integer number of milliseconds; negative values clamp to zero.
func Millis(name string, def int) time.Duration {
	n := Int(name, def)
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}
