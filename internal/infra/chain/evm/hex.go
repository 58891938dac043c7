package evm

import (
	"fmt"
	"strconv"
	"strings"
)

// parseHex converts a 0x-prefixed quantity to uint64.
func parseHex(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty hex string")
	}
	trimmed := strings.TrimPrefix(s, "0x")
	value, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", s, err)
	}
	return value, nil
}
