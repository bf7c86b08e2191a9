package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// NewLineReader wraps r for line-oriented prompts. Successive prompts of one
// command must share the returned reader so that no input is buffered away.
func NewLineReader(r io.Reader) *bufio.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// ReadLine reads one trimmed line. ok is false once the input is exhausted.
func ReadLine(br *bufio.Reader) (line string, ok bool) {
	s, err := br.ReadString('\n')
	if err != nil && s == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// PromptYesNo prompts the user for a yes/no response using stdin/stdout.
func PromptYesNo(prompt string) bool {
	return PromptYesNoWithReader(prompt, os.Stdin, os.Stdout)
}

// PromptYesNoWithReader prompts for yes/no with custom reader/writer for testing.
// End of input counts as no.
func PromptYesNoWithReader(prompt string, reader io.Reader, writer io.Writer) bool {
	br := NewLineReader(reader)

	for {
		_, _ = fmt.Fprintf(writer, "%s (y/n): ", prompt)
		line, ok := ReadLine(br)
		if !ok {
			return false
		}

		switch strings.ToLower(line) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		// Invalid input, loop continues
	}
}

// ReadStringWithReader reads a trimmed line from a reader.
func ReadStringWithReader(reader io.Reader) (string, error) {
	line, ok := ReadLine(NewLineReader(reader))
	if !ok {
		return "", errors.New("no input")
	}
	return line, nil
}
