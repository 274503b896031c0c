package normalize

import "strings"

// Media-link strategies, first non-empty wins. Externally finalized
// artifact links take priority over everything extracted here.
func extractMediaLinks(p Payload, opts Options) []string {
	if links := finalizedURLs(opts); len(links) > 0 {
		return links
	}

	obj := p.Object()
	if obj == nil {
		return []string{}
	}

	if links := fromResultsMedia(obj); len(links) > 0 {
		return links
	}
	if links := mediaLinksUnder(obj, "outputs"); len(links) > 0 {
		return links
	}
	if links := mediaLinksUnder(obj, "final_data"); len(links) > 0 {
		return links
	}
	if links := stringSlice(obj["media_links"]); len(links) > 0 {
		return links
	}
	return []string{}
}

func finalizedURLs(opts Options) []string {
	if len(opts.FinalizedLinks) == 0 {
		return nil
	}
	var urls []string
	for _, link := range opts.FinalizedLinks {
		if link.Type.IsMedia() && link.URL != "" {
			urls = append(urls, link.URL)
		}
	}
	return urls
}

// fromResultsMedia probes, per agent entry under results: an outputs
// value that is itself an array of media strings, then
// outputs.<key>.media_links, then the entry's own media_links.
func fromResultsMedia(obj map[string]any) []string {
	results, ok := mapField(obj, "results")
	if !ok {
		return nil
	}
	for _, agentKey := range sortedKeys(results) {
		entry, ok := results[agentKey].(map[string]any)
		if !ok {
			continue
		}
		if outputs, ok := mapField(entry, "outputs"); ok {
			for _, outKey := range sortedKeys(outputs) {
				switch out := outputs[outKey].(type) {
				case []any:
					if links := stringSlice(out); containsMedia(links) {
						return links
					}
				case map[string]any:
					if links := stringSlice(out["media_links"]); len(links) > 0 {
						return links
					}
				}
			}
		}
		if links := stringSlice(entry["media_links"]); len(links) > 0 {
			return links
		}
	}
	return nil
}

// mediaLinksUnder probes <field>.<key>.media_links for the first
// array found.
func mediaLinksUnder(obj map[string]any, field string) []string {
	m, ok := mapField(obj, field)
	if !ok {
		return nil
	}
	for _, key := range sortedKeys(m) {
		if entry, ok := m[key].(map[string]any); ok {
			if links := stringSlice(entry["media_links"]); len(links) > 0 {
				return links
			}
		}
	}
	return nil
}

var mediaMarkers = []string{"http", ".mp4", ".jpg", ".png"}

func containsMedia(links []string) bool {
	for _, link := range links {
		for _, marker := range mediaMarkers {
			if strings.Contains(link, marker) {
				return true
			}
		}
	}
	return false
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, elem := range arr {
		if s, ok := elem.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
