// Package records turns the migration input files into typed request records.
//
// Input files are plain text with one record per line and whitespace
// separated tokens. There is no header row and no quoting. Lines that cannot
// form a record are dropped, never reported as errors.
package records

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Longest line the scanner accepts. Anything longer fails the whole file.
const maxLineLength = 1024 * 1024

// Calls fn for every line of r with its 1-based line number.
func scanLines(r io.Reader, fn func(lineNo int, line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fn(lineNo, scanner.Text())
	}
	return scanner.Err()
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open input file")
	}
	return f, nil
}

func logSkipped(lineNo int, line string) {
	log.WithField("line", lineNo).Debugf("skipping line %q", line)
}
