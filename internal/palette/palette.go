// Package palette holds the fixed fallback color palette for columns created
// before the server has assigned them a color scheme.
package palette

import "github.com/and161185/retro-board/internal/model"

// Available is the column palette, cycled by column position so two columns
// created before either is confirmed never collide on color.
var Available = []model.ColumnColor{
	{ColumnColor: "#FFDBD7", ItemColor: "#FF6161", ButtonColor: "#FF9594"}, // red
	{ColumnColor: "#FFE0A0", ItemColor: "#FFB061", ButtonColor: "#FFC37A"}, // orange
	{ColumnColor: "#F9E99E", ItemColor: "#FED13E", ButtonColor: "#FCDC69"}, // yellow
	{ColumnColor: "#B4DFC4", ItemColor: "#7FBF7F", ButtonColor: "#96CD9D"}, // green
	{ColumnColor: "#B6D9F7", ItemColor: "#5FB0EF", ButtonColor: "#8AC4F3"}, // sky
	{ColumnColor: "#FFD8F0", ItemColor: "#E49EE5", ButtonColor: "#E49EE5"}, // pink
	{ColumnColor: "#D7CEF9", ItemColor: "#AB99ED", ButtonColor: "#C1B3F3"}, // purple
}

// CardColors is the legacy flat palette, the last-resort tier behind the
// column palette.
var CardColors = []string{
	"#fb923c",
	"#60a5fa",
	"#7dd3fc",
	"#f87171",
	"#fb923c",
	"#facc15",
	"#34d399",
	"#7dd3fc",
	"#60a5fa",
	"#c084fc",
	"#f9a8d4",
}

// Fallback returns the deterministic color scheme for the column at the given
// index, degrading to the legacy palette when the column palette has no entry
// to offer.
func Fallback(columnIndex int) model.ColumnColor {
	if columnIndex < 0 {
		columnIndex = 0
	}
	if len(Available) == 0 {
		return LegacyFallback(columnIndex)
	}
	return Available[columnIndex%len(Available)]
}

// LegacyFallback fans a legacy card color out to all three scheme slots.
func LegacyFallback(columnIndex int) model.ColumnColor {
	if columnIndex < 0 {
		columnIndex = 0
	}
	legacy := "#f0f0f0"
	if len(CardColors) > 0 {
		legacy = CardColors[columnIndex%len(CardColors)]
	}
	return model.ColumnColor{ColumnColor: legacy, ItemColor: legacy, ButtonColor: legacy}
}
