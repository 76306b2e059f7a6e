package container

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// LineSeparator terminates every line of an attribute report.
var LineSeparator = lineSeparator(runtime.GOOS)

func lineSeparator(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

// DescribeAllAttributes renders every attribute of the object at objPath,
// one "name: value" or "name: [v1, v2]" line each, in storage order.
func (s *Store) DescribeAllAttributes(objPath string) (string, error) {
	names, err := s.AttributeNames(objPath)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, name := range names {
		v, ok, err := s.ReadAttribute(objPath, name)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(FormatValue(v))
		b.WriteString(LineSeparator)
	}
	return b.String(), nil
}

// FormatValue renders an attribute value. Arrays are comma-space joined in
// brackets and floats use the shortest decimal form.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case []int64:
		return joinValues(x, func(n int64) string { return strconv.FormatInt(n, 10) })
	case []uint64:
		return joinValues(x, func(n uint64) string { return strconv.FormatUint(n, 10) })
	case []float64:
		return joinValues(x, func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) })
	case []string:
		return joinValues(x, func(s string) string { return s })
	default:
		return fmt.Sprint(v)
	}
}

func joinValues[T any](vals []T, format func(T) string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = format(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
