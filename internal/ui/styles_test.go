package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoColorStyles_RenderUnchanged(t *testing.T) {
	s := NoColorStyles()
	for _, style := range []interface{ Render(...string) string }{
		s.Header, s.Active, s.Done, s.Dim, s.Label, s.Value, s.Warning, s.Error, s.Border,
	} {
		assert.Equal(t, "lease.pdf", style.Render("lease.pdf"))
	}
}

func TestDefaultStyles_KeepText(t *testing.T) {
	s := DefaultStyles()
	assert.Contains(t, s.Header.Render("docrag"), "docrag")
	assert.Contains(t, s.Active.Render("●"), "●")
	assert.Contains(t, s.Dim.Render("○"), "○")
}

func TestGetStyles_NoColor(t *testing.T) {
	assert.Equal(t, "test", GetStyles(true).Done.Render("test"))
}

func TestGetStyles_HonoursNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, "test", GetStyles(false).Header.Render("test"))
}
