package httpclient

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StatusCodeSet is a set of HTTP status codes, built from individual codes
// and inclusive ranges. It is immutable after construction.
type StatusCodeSet struct {
	codes map[int]struct{}
}

// ParseStatusCodes parses a comma-separated list of status codes and ranges,
// e.g. "200-299,404" or "200,204,301-308". Whitespace around entries is
// ignored. An empty string yields an empty set.
func ParseStatusCodes(spec string) (*StatusCodeSet, error) {
	set := &StatusCodeSet{codes: make(map[int]struct{})}
	if strings.TrimSpace(spec) == "" {
		return set, nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parseCode(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid range start %q: %w", lo, err)
			}
			end, err := parseCode(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid range end %q: %w", hi, err)
			}
			if start > end {
				return nil, fmt.Errorf("invalid range %q: start exceeds end", part)
			}
			for code := start; code <= end; code++ {
				set.codes[code] = struct{}{}
			}
			continue
		}

		code, err := parseCode(part)
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", part, err)
		}
		set.codes[code] = struct{}{}
	}

	return set, nil
}

// MustParseStatusCodes is like ParseStatusCodes but panics on error.
// Intended for package-level defaults with known-valid specs.
func MustParseStatusCodes(spec string) *StatusCodeSet {
	set, err := ParseStatusCodes(spec)
	if err != nil {
		panic(err)
	}
	return set
}

// StatusCodesFromSlice builds a set from explicit codes.
func StatusCodesFromSlice(codes []int) *StatusCodeSet {
	set := &StatusCodeSet{codes: make(map[int]struct{}, len(codes))}
	for _, code := range codes {
		set.codes[code] = struct{}{}
	}
	return set
}

func parseCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if code < 100 || code > 599 {
		return 0, fmt.Errorf("status code %d out of range", code)
	}
	return code, nil
}

// Contains reports whether the set contains the given status code.
// A nil set contains nothing.
func (s *StatusCodeSet) Contains(code int) bool {
	if s == nil {
		return false
	}
	_, ok := s.codes[code]
	return ok
}

// IsEmpty reports whether the set has no codes. A nil set is empty.
func (s *StatusCodeSet) IsEmpty() bool {
	return s == nil || len(s.codes) == 0
}

// String returns a canonical comma-separated representation of the set.
func (s *StatusCodeSet) String() string {
	if s.IsEmpty() {
		return ""
	}
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code)
	}
	return strings.Join(parts, ",")
}
