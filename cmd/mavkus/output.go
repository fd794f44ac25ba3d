package main

import (
	"fmt"
	"io"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// diag receives everything that is not a command's primary output.
var diag io.Writer = os.Stderr

type mark struct {
	color, symbol string
}

var (
	markSuccess = mark{colorGreen, "✓"}
	markError   = mark{colorRed, "✗"}
	markWarning = mark{colorYellow, "⚠"}
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(m mark, format string, args []any) {
	fmt.Fprintln(diag, colorize(m.color, m.symbol+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(markSuccess, format, args) }

func printError(format string, args ...any) { printMarked(markError, format, args) }

func printWarning(format string, args ...any) { printMarked(markWarning, format, args) }

// printStatus prints an aligned "label: value" line.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(diag, "  %-12s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// printNote prints a dimmed annotation under a command's output.
func printNote(color, text string) {
	fmt.Fprintln(diag, colorize(color, "("+text+")"))
}
