package procmgr

import (
	"bufio"
	"io"
	"sync"

	"github.com/loykin/devboxd/internal/metrics"
)

// maxLineBytes bounds a single captured log line. Longer lines abort the
// scan for that stream; the process itself is unaffected.
const maxLineBytes = 1024 * 1024

// newLineScanner returns a line scanner sized for captured process output.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return sc
}

// collect drains one output stream line by line into the record's buffers
// and forwards each structured entry to the broadcaster. It returns when
// the stream reaches EOF, which happens once the child closes its output.
func (m *Manager) collect(rec *Record, r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	level := "info"
	if source == "stderr" {
		level = "error"
	}
	sc := newLineScanner(r)
	for sc.Scan() {
		entry := rec.appendLog(source, level, sc.Text())
		m.publish(entry)
		metrics.IncLogLine(source)
	}
	if err := sc.Err(); err != nil {
		m.logger.Debug("log scan ended", "id", rec.ID(), "source", source, "error", err)
	}
}
