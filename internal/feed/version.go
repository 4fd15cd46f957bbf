package feed

import (
	"strconv"
	"strings"
)

// IsNewer returns true if available is a newer version than current.
// Both are semver strings like "v1.2.3" or "1.2.3"; a pre-release suffix
// is stripped before comparison.
func IsNewer(current, available string) bool {
	cur := parseVersion(current)
	avail := parseVersion(available)
	if cur == nil || avail == nil {
		return false
	}
	for i := 0; i < 3; i++ {
		if avail[i] > cur[i] {
			return true
		}
		if avail[i] < cur[i] {
			return false
		}
	}
	return false
}

// parseVersion extracts [major, minor, patch] from a version string.
func parseVersion(v string) []int {
	v = strings.TrimPrefix(v, "v")
	parts := strings.SplitN(v, "-", 2)
	fields := strings.Split(parts[0], ".")
	if len(fields) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil
		}
		result[i] = n
	}
	return result
}
