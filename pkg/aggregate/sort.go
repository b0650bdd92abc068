package aggregate

import (
	"sort"
	"strconv"
	"strings"
)

// leadingNumber parses the run of ASCII digits at the start of s.
func leadingNumber(s string) (uint64, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// lessNatural orders values with a leading number by that number, then the
// rest lexically after them.
func lessNatural(a, b string) bool {
	na, aok := leadingNumber(a)
	nb, bok := leadingNumber(b)
	switch {
	case aok && bok:
		if na != nb {
			return na < nb
		}
	case aok:
		return true
	case bok:
		return false
	}
	return strings.Compare(a, b) < 0
}

func sortNatural(values []string) {
	sort.SliceStable(values, func(i, j int) bool { return lessNatural(values[i], values[j]) })
}
