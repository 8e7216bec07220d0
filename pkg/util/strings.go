package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeWallet trims and lower-cases a wallet address.
func NormalizeWallet(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ShortAddr abbreviates a wallet address for logs.
func ShortAddr(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:8] + "..."
}
