package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIgnore(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		IgnoreFile: "# comment\n\n/archive/\n*.draft.md\n!keep.md\nnotes/todo.txt  \n",
	})

	rules, err := loadIgnore(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"/archive"}, rules.dirs)
	assert.Equal(t, []string{"*.draft.md", "notes/todo.txt"}, rules.files)

	tests := []struct {
		rel   string
		dir   bool
		match bool
	}{
		{rel: "archive", dir: true, match: true},
		{rel: "talks/archive", dir: true, match: false},
		{rel: "talks", dir: true, match: false},
		{rel: "blog.draft.md", match: true},
		{rel: "posts/blog.draft.md", match: true},
		{rel: "notes/todo.txt", match: true},
		{rel: "other/notes/todo.txt", match: false},
		{rel: "keep.md", match: false},
		{rel: IgnoreFile, match: true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if tt.dir {
				assert.Equal(t, tt.match, rules.matchDir(tt.rel))
				return
			}
			assert.Equal(t, tt.match, rules.match(tt.rel))
		})
	}
}

func TestLoadIgnore_Missing(t *testing.T) {
	rules, err := loadIgnore(t.TempDir())
	require.NoError(t, err)
	assert.False(t, rules.match("resume.txt"))
}

func TestLoadIgnore_InvalidPattern(t *testing.T) {
	dir := writeFiles(t, map[string]string{IgnoreFile: "[bad\n"})

	_, err := loadIgnore(dir)
	assert.ErrorContains(t, err, "invalid pattern")
}
