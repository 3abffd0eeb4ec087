package commitmsg

import "regexp"

var typeEmoji = map[string]string{
	"feat":     "✨",
	"fix":      "🐛",
	"docs":     "📝",
	"style":    "💄",
	"refactor": "♻️",
	"perf":     "⚡️",
	"test":     "✅",
	"build":    "👷",
	"ci":       "💚",
	"chore":    "🔧",
	"revert":   "⏪️",
}

var conventionalHeader = regexp.MustCompile(`^([a-z]+)(\([^)]*\))?!?:`)

// CommitType returns the Conventional Commits type of message, or "".
func CommitType(message string) string {
	m := conventionalHeader.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return m[1]
}

// AddEmoji prefixes message with the gitmoji for its type. Messages with an
// unknown type or an existing prefix are returned unchanged.
func AddEmoji(message string) string {
	emoji, ok := typeEmoji[CommitType(message)]
	if !ok {
		return message
	}
	return emoji + " " + message
}
