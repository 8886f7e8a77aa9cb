// Package ui renders console output for crmctl.
//
// [Palette] holds the lipgloss styles for titles, success, error, warning and help text.
// [Console] writes progress lines with "✓" / "✗" markers, banners and rules on top of a palette.
// Styles follow the color profile of the destination writer, so redirected output stays plain.
package ui
