package cmd

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDetails(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/houhuawei23/ai-anki-cards", Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	b := buildDetails(info)
	assert.Equal(t, "v0.3.1", b.Version)
	assert.True(t, b.Modified)

	var buf bytes.Buffer
	printVersion(&buf, b)
	out := buf.String()
	assert.Contains(t, out, "ankigen v0.3.1\n")
	assert.Contains(t, out, "module  github.com/houhuawei23/ai-anki-cards")
	assert.Contains(t, out, "commit  0123456789ab-dirty (2026-10-01T12:00:00Z)")
	assert.Contains(t, out, "go      go")
}

func TestBuildDetailsWithoutInfo(t *testing.T) {
	b := buildDetails(nil)
	assert.Equal(t, version, b.Version)

	var buf bytes.Buffer
	printVersion(&buf, b)
	assert.NotContains(t, buf.String(), "commit")
}
