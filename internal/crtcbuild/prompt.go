package crtcbuild

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// askForConfirmation reads y/n answers from in until one is valid. An empty
// answer picks def; EOF or a read error means no.
func askForConfirmation(in io.Reader, p colorPrinter, def bool, format string, a ...any) bool {
	reader := bufio.NewReader(in)
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	prompt := fmt.Sprintf("%s %s: ", fmt.Sprintf(format, a...), hint)

	for {
		cPrintf(p, "%s", prompt)
		response, err := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if err != nil && response == "" {
			return false
		}

		switch response {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		if err != nil {
			return false
		}
		cPrintln(colWarn, "Invalid input.")
	}
}
