package keyspace

import (
	"path/filepath"
	"regexp"
	"strings"

	"pvzvoice/internal/textutil"
)

// filenameCellPatterns are tried in order against the lower-cased stem.
// Letter-prefixed forms come before plain numbers so "cell-a12" yields A12.
var filenameCellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`cell[-_]?([a-z]\d+)`),
	regexp.MustCompile(`ячейка[-_ ]?([a-z]\d+)`),
	regexp.MustCompile(`^([a-z]\d+)`),
	regexp.MustCompile(`номер[-_ ]?(\d+)`),
	regexp.MustCompile(`number[-_]?(\d+)`),
	regexp.MustCompile(`cell[-_]?(\d+)`),
	regexp.MustCompile(`ячейка[-_ ]?(\d+)`),
	regexp.MustCompile(`^(\d+)`),
	regexp.MustCompile(`box[-_]?([a-z]\d+)`),
	regexp.MustCompile(`slot[-_]?([a-z]\d+)`),
	regexp.MustCompile(`compartment[-_]?([a-z]\d+)`),
	regexp.MustCompile(`locker[-_]?([a-z]\d+)`),
	regexp.MustCompile(`box[-_]?(\d+)`),
	regexp.MustCompile(`slot[-_]?(\d+)`),
	regexp.MustCompile(`compartment[-_]?(\d+)`),
	regexp.MustCompile(`locker[-_]?(\d+)`),
	regexp.MustCompile(`([a-z]\d+)`),
	regexp.MustCompile(`(\d+)`),
}

// InferFromFilename derives a request from an uploaded file name. Known
// event spellings win; otherwise the first cell pattern that matches
// decides, and a name with no digits becomes a custom event named after the
// stem. It reports false when the name has no usable stem.
func InferFromFilename(name string) (Request, bool) {
	base := filepath.Base(textutil.Normalize(name))
	if base == "." || base == string(filepath.Separator) {
		return nil, false
	}
	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		return nil, false
	}
	if canonical, ok := canonicalEvent(stem); ok {
		return EventRequest{Name: canonical}, true
	}

	lower := strings.ToLower(stem)
	for _, pattern := range filenameCellPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			return Cell(m[1]), true
		}
	}
	return Event(stem), true
}
