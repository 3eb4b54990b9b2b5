package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  ____            _             ", "#38bdf8"},
	{" |  _ \\ __ _ _ __| | ___ _   _ ", "#22d3ee"},
	{" | |_) / _` | '__| |/ _ \\ | | |", "#2dd4bf"},
	{" |  __/ (_| | |  | |  __/ |_| |", "#34d399"},
	{" |_|   \\__,_|_|  |_|\\___|\\__, |", "#4ade80"},
	{"                         |___/ ", "#a3e635"},
}

// PrintBanner writes the chat banner, colored when w is a color terminal.
func PrintBanner(w io.Writer, subtitle string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(out.Color(line.color)))
	}
	if subtitle != "" {
		fmt.Fprintln(w, out.String("  "+subtitle).Faint())
	}
	fmt.Fprintln(w)
}
