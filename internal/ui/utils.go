package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

// Output is where every message goes. Tests point it at a buffer.
var Output io.Writer = os.Stdout

var (
	infoColor    = color.New(color.FgBlue)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	bannerColor  = color.New(color.FgCyan)
)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	warningColor.Fprintf(Output, "Warning: %s\n", message)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	errorColor.Fprintf(Output, "\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	successColor.Fprintf(Output, "%s\n", message)
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	infoColor.Fprintf(Output, "%s\n", message)
}

func PrintInfof(format string, args ...interface{}) {
	PrintInfo(fmt.Sprintf(format, args...))
}

func PrintBanner() {
	bannerColor.Fprint(Output, figure.NewFigure("GeoTile", "isometric1", true).String())
	fmt.Fprintln(Output)
}
