package commitmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"feat: add x", "✨ feat: add x"},
		{"fix(parser): handle EOF", "🐛 fix(parser): handle EOF"},
		{"refactor!: drop v1 api", "♻️ refactor!: drop v1 api"},
		{"docs: typo", "📝 docs: typo"},
		{"unknown: thing", "unknown: thing"},
		{"Add a feature", "Add a feature"},
		{"✨ feat: already prefixed", "✨ feat: already prefixed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, AddEmoji(tt.input))
		})
	}
}

func TestCommitType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "feat", CommitType("feat(ui): x"))
	assert.Equal(t, "chore", CommitType("chore: bump deps"))
	assert.Empty(t, CommitType("Merge branch 'main'"))
	assert.Empty(t, CommitType(""))
}
