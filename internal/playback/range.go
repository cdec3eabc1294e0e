package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

type Range struct {
	Start int64
	End   int64
}

func (r Range) ContentLength() int64 {
	return r.End - r.Start + 1
}

func (r Range) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange parses a single-range Range header against a file of the
// given size. A nil result with nil error means no range was requested.
// Multi-range requests are served as their first range only.
func ParseRange(header string, size int64) (*Range, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}

	if idx := strings.Index(spec, ","); idx != -1 {
		spec = strings.TrimSpace(spec[:idx])
	}

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrInvalidRange
	}

	var start, end int64

	switch {
	case first == "":
		// Suffix form: last N bytes.
		suffixLen, err := strconv.ParseInt(last, 10, 64)
		if err != nil || suffixLen <= 0 {
			return nil, ErrInvalidRange
		}
		start = size - suffixLen
		if start < 0 {
			start = 0
		}
		end = size - 1

	case last == "":
		// Open-ended form: from start to EOF.
		s, err := strconv.ParseInt(first, 10, 64)
		if err != nil || s < 0 {
			return nil, ErrInvalidRange
		}
		start = s
		end = size - 1

	default:
		s, err := strconv.ParseInt(first, 10, 64)
		if err != nil || s < 0 {
			return nil, ErrInvalidRange
		}
		e, err := strconv.ParseInt(last, 10, 64)
		if err != nil {
			return nil, ErrInvalidRange
		}
		start, end = s, e
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiable
	}

	if end >= size {
		end = size - 1
	}

	return &Range{Start: start, End: end}, nil
}
