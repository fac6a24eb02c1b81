package subscriptions

import "strings"

// HasWildcards reports whether filter contains an MQTT wildcard level ('+'
// matches exactly one level, '#' matches zero or more trailing levels).
func HasWildcards(filter string) bool {
	return strings.ContainsAny(filter, "+#")
}

// Matches reports whether topic matches filter, using standard MQTT
// level-wise matching on '/'.
func Matches(topic, filter string) bool {
	topicLevels := strings.Split(topic, "/")
	filterLevels := strings.Split(filter, "/")

	for i, f := range filterLevels {
		if f == "#" {
			// '#' must be the last level and matches everything remaining,
			// including zero further levels.
			return true
		}

		if i >= len(topicLevels) {
			return false
		}

		if f == "+" {
			continue
		}

		if f != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
