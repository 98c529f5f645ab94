// Package extract searches arbitrarily nested queue payloads for the media
// URL, cost and duration values the remote API reports under no fixed schema.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"genvoy/internal/media"
)

// Media-bearing keys are probed first, in this order, before the remaining
// keys of an object are scanned exhaustively.
var preferredMediaKeys = []string{"images", "videos", "audio", "url", "image", "video", "result", "output"}

var costPaths = [][]string{
	{"cost_usd"},
	{"cost"},
	{"usage", "cost_usd"},
	{"usage", "cost"},
	{"usage", "total_cost"},
	{"metrics", "cost"},
}

var durationPaths = [][]string{
	{"duration_ms"},
	{"latency_ms"},
	{"timings", "duration_ms"},
	{"timings", "total_ms"},
	{"metrics", "duration_ms"},
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// MediaURL returns the most plausible media URL in payload. Candidates with a
// recognized media extension win over the first URL found in traversal order.
func MediaURL(payload any) (string, bool) {
	return firstURL(payload)
}

func collectURLs(payload any, urls *[]string) {
	switch value := payload.(type) {
	case string:
		if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			*urls = append(*urls, value)
		}
	case map[string]any:
		for _, key := range preferredMediaKeys {
			if nested, ok := value[key]; ok {
				if found, ok := firstURL(nested); ok {
					*urls = append(*urls, found)
				}
			}
		}
		// Remaining keys are scanned in sorted order so the fallback pick is
		// stable across runs.
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if found, ok := firstURL(value[key]); ok {
				*urls = append(*urls, found)
			}
		}
	case []any:
		for _, item := range value {
			if found, ok := firstURL(item); ok {
				*urls = append(*urls, found)
			}
		}
	}
}

func firstURL(payload any) (string, bool) {
	var urls []string
	collectURLs(payload, &urls)
	if len(urls) == 0 {
		return "", false
	}
	for _, candidate := range urls {
		if kind, _ := media.Detect(candidate, ""); kind.Known() {
			return candidate, true
		}
	}
	return urls[0], true
}

// CostUSD probes the fixed cost key paths against payload and, when present,
// its nested data object. The first path that yields a value wins.
func CostUSD(payload map[string]any) (float64, bool) {
	for _, source := range sources(payload) {
		for _, path := range costPaths {
			raw, ok := nestedValue(source, path)
			if !ok {
				continue
			}
			if value, ok := asNumber(raw); ok {
				return value, true
			}
		}
	}
	return 0, false
}

// DurationMS probes the fixed duration key paths the same way CostUSD does.
func DurationMS(payload map[string]any) (int64, bool) {
	for _, source := range sources(payload) {
		for _, path := range durationPaths {
			raw, ok := nestedValue(source, path)
			if !ok {
				continue
			}
			if value, ok := asNumber(raw); ok {
				return int64(value), true
			}
		}
	}
	return 0, false
}

func sources(payload map[string]any) []map[string]any {
	out := []map[string]any{payload}
	if nested, ok := payload["data"].(map[string]any); ok {
		out = append(out, nested)
	}
	return out
}

func nestedValue(source map[string]any, path []string) (any, bool) {
	var cursor any = source
	for _, key := range path {
		obj, ok := cursor.(map[string]any)
		if !ok {
			return nil, false
		}
		cursor, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cursor, true
}

// asNumber accepts JSON numbers directly and pulls the first signed decimal
// out of numeric strings like "$0.04" or "1200ms".
func asNumber(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case string:
		match := numberPattern.FindString(value)
		if match == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
