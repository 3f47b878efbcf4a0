package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"splitdb/pkg/common"
)

// Sink receives each parsed key. Returning an error stops the load.
type Sink func(key common.KeyType) error

// BadLine is told about lines that do not parse as integers. The load
// continues; skipping versus aborting stays with the caller.
type BadLine func(line int, text string, err error)

// ReadInts reads one integer per line from r, feeding each to sink.
// Blank lines are skipped. It returns the number of keys delivered.
func ReadInts(r io.Reader, sink Sink, bad BadLine) (int, error) {
	scanner := bufio.NewScanner(r)
	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			if bad != nil {
				bad(lineNo, text, err)
			}
			continue
		}
		if err := sink(common.KeyType(n)); err != nil {
			return count, fmt.Errorf("line %d: %w", lineNo, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read input: %w", err)
	}
	return count, nil
}

// ReadFile is ReadInts over the named file.
func ReadFile(path string, sink Sink, bad BadLine) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReadInts(f, sink, bad)
}
