package config

import "strings"

// Merge deep-merges src into dst. Nested maps are merged key by key, any
// other value in src replaces the one in dst. Keys match case-insensitively,
// as the binder does, so CHATLOG_SERVER_METRICSPORT overrides the file's
// server.metricsPort instead of sitting next to it.
func Merge(dst, src map[string]any) {
	for k, v := range src {
		k = matchKey(dst, k)
		if mv, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				Merge(existing, mv)
				continue
			}
			v = clone(mv)
		}
		dst[k] = v
	}
}

func matchKey(m map[string]any, key string) string {
	if _, ok := m[key]; ok {
		return key
	}
	for existing := range m {
		if strings.EqualFold(existing, key) {
			return existing
		}
	}
	return key
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	Merge(out, m)
	return out
}
