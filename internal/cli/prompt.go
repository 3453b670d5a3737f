package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForLine asks for one line of input on in, showing label on out.
// Returns def when the user enters nothing or input cannot be read.
func PromptForLine(in io.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input, using default")
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
