package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// attrString renders v without quoting, for header fields.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return formatValue(v)
}

// formatValue renders v for key=value output, quoting strings that contain
// spaces, quotes, or '='. String slices such as candidate lists render as
// a bracketed, quoted list.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().In(time.Local).Format(consoleTimeLayout)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		switch val := v.Any().(type) {
		case []string:
			quoted := make([]string, len(val))
			for i, s := range val {
				quoted[i] = strconv.Quote(s)
			}
			return "[" + strings.Join(quoted, " ") + "]"
		case error:
			return quote(val.Error())
		default:
			return quote(fmt.Sprint(val))
		}
	case slog.KindString:
		return quote(v.String())
	default:
		return v.String()
	}
}

func quote(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
