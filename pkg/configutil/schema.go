package configutil

import (
	"sort"
	"strings"
)

// Schema describes the keys a provider accepts in its settings map. Key
// matching ignores case, underscores and hyphens, so "sample_rate",
// "sampleRate" and "SAMPLE-RATE" all address the same setting.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// SettingsError collects every schema violation at once so a bad config
// surfaces a single actionable message instead of a fix-and-rerun loop.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks a settings map against its schema.
func ValidateSettings(input map[string]any, schema Schema) error {
	required := canonical(schema.Required)
	optional := canonical(schema.Optional)

	present := make(map[string]any, len(input))
	for k, v := range input {
		present[normalizeKey(k)] = v
	}

	verr := &SettingsError{}
	for nk, name := range required {
		v, ok := present[nk]
		if !ok || isEmptyValue(v) {
			verr.Missing = append(verr.Missing, name)
		}
	}
	if !schema.AllowUnknown {
		for k := range input {
			nk := normalizeKey(k)
			if _, ok := required[nk]; ok {
				continue
			}
			if _, ok := optional[nk]; ok {
				continue
			}
			verr.Unknown = append(verr.Unknown, k)
		}
	}

	if len(verr.Missing) == 0 && len(verr.Unknown) == 0 {
		return nil
	}
	sort.Strings(verr.Missing)
	sort.Strings(verr.Unknown)
	return verr
}

func canonical(keys []string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[normalizeKey(k)] = k
	}
	return m
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
