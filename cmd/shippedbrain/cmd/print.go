package cmd

import (
	"fmt"
	"io"
	"os"

	ct "github.com/daviddengcn/go-colortext"
)

func printSuccess(out io.Writer, content string) {
	printColored(out, ct.Green, content)
}

func printFailure(out io.Writer, content string) {
	printColored(out, ct.Red, content)
}

// printColored writes content to out. The terminal color is only changed when
// out is the process stdout, the one stream go-colortext controls.
func printColored(out io.Writer, color ct.Color, content string) {
	if out != os.Stdout {
		_, _ = fmt.Fprint(out, content)
		return
	}

	ct.ChangeColor(color, false, ct.None, false)
	_, _ = fmt.Fprint(out, content)
	ct.ResetColor()
}
