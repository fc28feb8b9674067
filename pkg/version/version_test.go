package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "parallax "))
	assert.Contains(t, s, Version)
	assert.Contains(t, s, Commit)
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
