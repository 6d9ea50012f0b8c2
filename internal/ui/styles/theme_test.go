// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		name    string
		profile termenv.Profile
		dark    bool
		want    string
	}{
		{"ascii", termenv.Ascii, true, "notty"},
		{"dark truecolor", termenv.TrueColor, true, "dark"},
		{"light ansi256", termenv.ANSI256, false, "light"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := &Theme{ColorProfile: tt.profile, IsDark: tt.dark}
			assert.Equal(t, tt.want, th.GlamourStyle())
		})
	}
}

func TestStatusRenderersCarryIndicators(t *testing.T) {
	assert.True(t, strings.Contains(RenderSuccess("saved"), StatusIndicators.Success))
	assert.True(t, strings.Contains(RenderError("failed"), StatusIndicators.Error))
	assert.True(t, strings.Contains(RenderWarning("slow"), StatusIndicators.Warning))
	assert.True(t, strings.Contains(RenderInfo("hint"), StatusIndicators.Info))
}

func TestNewTheme(t *testing.T) {
	th := NewTheme()
	assert.NotNil(t, th)
	assert.Contains(t, []string{"notty", "dark", "light"}, th.GlamourStyle())
}
