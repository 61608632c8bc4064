package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_IncludesGoVersionAndPlatform(t *testing.T) {
	s := String()
	assert.Contains(t, s, "go")
	assert.Contains(t, s, "/")
}

func TestString_UsesConfiguredVersionAndCommit(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	defer func() { Version, GitCommit = oldVersion, oldCommit }()

	Version = "v1.2.3"
	GitCommit = "abcdef1234567890"

	s := String()
	assert.True(t, strings.HasPrefix(s, "v1.2.3 (abcdef1)"), "got %q", s)
}
