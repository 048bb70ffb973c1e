// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorSubtle    = lipgloss.Color("240") // muted gray
	colorHighlight = lipgloss.Color("81")  // teal
	colorError     = lipgloss.Color("196")
	colorSuccess   = lipgloss.Color("40")
	colorSpecial   = lipgloss.Color("208") // orange
)

// styles are bound to the writer so colour is dropped when it is not a
// terminal.
type styles struct {
	name    lipgloss.Style
	subtle  lipgloss.Style
	header  lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	special lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		name:    r.NewStyle().Foreground(colorHighlight).Bold(true),
		subtle:  r.NewStyle().Foreground(colorSubtle),
		header:  r.NewStyle().Bold(true).Padding(0, 1),
		ok:      r.NewStyle().Foreground(colorSuccess),
		failed:  r.NewStyle().Foreground(colorError),
		special: r.NewStyle().Foreground(colorSpecial),
	}
}
