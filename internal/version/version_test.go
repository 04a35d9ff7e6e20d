package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(Version))
	assert.True(t, IsValid(DevVersion))
	assert.False(t, IsValid("latest"))
	assert.False(t, IsValid("v0.1.0"))
}

func TestValidate(t *testing.T) {
	v := Version
	t.Cleanup(func() { Version = v })

	assert.NoError(t, Validate())

	Version = "1.4.0-rc.2"
	assert.NoError(t, Validate())

	Version = "$(git describe)"
	assert.ErrorContains(t, Validate(), "not a semantic version")
}

func TestString(t *testing.T) {
	commit := GitCommit
	t.Cleanup(func() { GitCommit = commit })

	GitCommit = "unknown"
	assert.Equal(t, Version, String())
	assert.Equal(t, "Version="+Version, StringFull())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, Version+"-01234567", String())
	assert.Contains(t, StringFull(), "Commit=01234567")
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}
