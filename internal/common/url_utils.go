package common

import (
	"strings"
)

// NormalizeLinkURL prepares a user-supplied link target for insertion.
// Targets already carrying an http://, https://, or mailto: scheme pass
// through untouched (scheme match is case-insensitive); anything else is
// prefixed with https:// so bare domains resolve off-site instead of
// relative to the journal.
func NormalizeLinkURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") {
		return trimmed
	}

	return "https://" + trimmed
}

// BuildImageURL builds the serving URL for a catalog image
func BuildImageURL(baseURL, uuid string) string {
	return joinPath(baseURL, "images", uuid)
}

// BuildImageInspectURL builds the inspection link used by picker cards
func BuildImageInspectURL(baseURL, uuid string) string {
	return joinPath(baseURL, "images", uuid, "inspect")
}

// joinPath safely joins path segments, preventing duplicate slashes
func joinPath(segments ...string) string {
	result := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if result == "" {
			result = seg
		} else if result[len(result)-1] == '/' {
			if seg[0] == '/' {
				result += seg[1:]
			} else {
				result += seg
			}
		} else {
			if seg[0] == '/' {
				result += seg
			} else {
				result += "/" + seg
			}
		}
	}
	return result
}
