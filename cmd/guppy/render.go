package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/CQCL/guppy-go/internal/diag"
)

// renderDiag prints a diag.Error the way the teacher's own CLI driver
// stack renders analysis findings: file:line:col, a colored severity tag,
// the title, then each note indented on its own line. Colors are disabled
// entirely when noColor is set (mirroring harness.go's --no-color flag) or
// when color.NoColor is set globally (fatih/color decides that from stdout
// and the environment; w itself is not inspected).
func renderDiag(w io.Writer, err *diag.Error, noColor bool) {
	tag := color.New(color.FgRed, color.Bold)
	if err.Class() == diag.ClassInternal {
		tag = color.New(color.FgMagenta, color.Bold)
	}
	if noColor {
		tag.DisableColor()
	}

	label := "error"
	if err.Class() == diag.ClassInternal {
		label = "internal error"
	}

	fmt.Fprintf(w, "%s:%d:%d: ", err.Primary.Start.File, err.Primary.Start.Line, err.Primary.Start.Col)
	tag.Fprintf(w, "%s", label)
	fmt.Fprintf(w, ": %s\n", err.Title)

	for _, span := range err.Secondary {
		fmt.Fprintf(w, "  also: %s:%d:%d\n", span.Start.File, span.Start.Line, span.Start.Col)
	}
	for _, note := range err.Notes {
		if note.Span != nil {
			fmt.Fprintf(w, "  note: %s:%d:%d: %s\n", note.Span.Start.File, note.Span.Start.Line, note.Span.Start.Col, note.Message)
		} else {
			fmt.Fprintf(w, "  note: %s\n", note.Message)
		}
	}
}
