package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Text extraction strategies, first match wins. Each probes one of the
// historical output locations the backend has used.
var textStrategies = []func(map[string]any) (string, bool){
	fromResultsOutputs,
	fromOutputs,
	fromFinalData,
	fromBareResult,
	fromLegacyPoemOutput,
}

func extractText(p Payload, opts Options) (string, int) {
	if obj := p.Object(); obj != nil {
		for i, strategy := range textStrategies {
			if text, ok := strategy(obj); ok {
				return text, i + 1
			}
		}
		return DefaultText, 0
	}

	// Raw-string payload: best-effort textual scrape, then truncation.
	if text, ok := scrapeRawString(p.Raw(), opts.MinMatchLen); ok {
		return text, len(textStrategies) + 1
	}
	if raw := p.Raw(); raw != "" {
		if len(raw) > opts.TruncateLen {
			return raw[:opts.TruncateLen] + "...", len(textStrategies) + 2
		}
		return raw, len(textStrategies) + 2
	}
	return DefaultText, 0
}

// fromResultsOutputs probes results.<agent>.outputs.<key>.result, then
// results.<agent>.result.
func fromResultsOutputs(obj map[string]any) (string, bool) {
	results, ok := mapField(obj, "results")
	if !ok {
		return "", false
	}
	for _, agentKey := range sortedKeys(results) {
		entry, ok := results[agentKey].(map[string]any)
		if !ok {
			continue
		}
		if outputs, ok := mapField(entry, "outputs"); ok {
			for _, outKey := range sortedKeys(outputs) {
				if out, ok := outputs[outKey].(map[string]any); ok {
					if v, ok := out["result"]; ok {
						return stringify(v), true
					}
				}
			}
		}
		if v, ok := entry["result"]; ok {
			return stringify(v), true
		}
	}
	return "", false
}

// fromOutputs probes outputs.<key>.result.
func fromOutputs(obj map[string]any) (string, bool) {
	outputs, ok := mapField(obj, "outputs")
	if !ok {
		return "", false
	}
	for _, key := range sortedKeys(outputs) {
		if out, ok := outputs[key].(map[string]any); ok {
			if v, ok := out["result"]; ok {
				return stringify(v), true
			}
		}
	}
	return "", false
}

// fromFinalData probes final_data.<key>.result.
func fromFinalData(obj map[string]any) (string, bool) {
	finalData, ok := mapField(obj, "final_data")
	if !ok {
		return "", false
	}
	for _, key := range sortedKeys(finalData) {
		if entry, ok := finalData[key].(map[string]any); ok {
			if v, ok := entry["result"]; ok {
				return stringify(v), true
			}
		}
	}
	return "", false
}

func fromBareResult(obj map[string]any) (string, bool) {
	if v, ok := obj["result"]; ok {
		return stringify(v), true
	}
	return "", false
}

// fromLegacyPoemOutput probes the oldest output convention.
func fromLegacyPoemOutput(obj map[string]any) (string, bool) {
	if poem, ok := mapField(obj, "poem_output"); ok {
		if v, ok := poem["result"]; ok {
			return stringify(v), true
		}
	}
	return "", false
}

// Raw-string patterns, tried in order. The backend sometimes ships a
// Python-repr of its result dict instead of JSON; these scrape the
// quoted result out of that blob.
var rawPatterns = []*regexp.Regexp{
	regexp.MustCompile(`'raw_output':\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`'result':\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`"result":\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`'(ANALYSIS:(?:[^'\\]|\\.)*)'`),
	regexp.MustCompile(`"(ANALYSIS:(?:[^"\\]|\\.)*)"`),
}

func scrapeRawString(raw string, minLen int) (string, bool) {
	for _, pattern := range rawPatterns {
		m := pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		capture := unescape(m[1])
		if len(capture) > minLen {
			return capture, true
		}
	}
	return "", false
}

// unescape resolves the escape sequences the backend's repr carries,
// in the same order the original client applied them.
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
