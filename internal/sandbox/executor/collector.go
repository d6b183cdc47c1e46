package executor

import (
	"bytes"
	"sync"
)

const (
	// binarySampleSize matches git's heuristic for spotting binary output.
	binarySampleSize = 8000
	// maxLineBytes bounds the partial line kept for scanning.
	maxLineBytes = 4096
)

// collector captures process output with a size limit and binary detection.
// Stdout and stderr share one collector, so writes are serialized. Complete
// lines are handed to onLine outside the lock.
type collector struct {
	mu        sync.Mutex
	buffer    bytes.Buffer
	maxBytes  int
	truncated bool
	isBinary  bool

	bytesChecked int
	sampleSize   int

	partial []byte
	onLine  func(string)
}

func newCollector(maxBytes, sampleSize int, onLine func(string)) *collector {
	return &collector{
		maxBytes:   maxBytes,
		sampleSize: sampleSize,
		onLine:     onLine,
	}
}

func (c *collector) Write(p []byte) (int, error) {
	c.mu.Lock()
	lines := c.write(p)
	c.mu.Unlock()

	if c.onLine != nil {
		for _, line := range lines {
			c.onLine(line)
		}
	}
	return len(p), nil
}

func (c *collector) write(p []byte) []string {
	if c.isBinary {
		return nil
	}

	if c.bytesChecked < c.sampleSize {
		toCheck := p[:min(len(p), c.sampleSize-c.bytesChecked)]
		if isBinaryContent(toCheck) {
			c.isBinary = true
			c.truncated = true
			return nil
		}
		c.bytesChecked += len(toCheck)
	}

	lines := c.splitLines(p)

	remaining := c.maxBytes - c.buffer.Len()
	if remaining <= 0 {
		c.truncated = true
		return lines
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
		c.truncated = true
	}
	c.buffer.Write(toWrite)
	return lines
}

func (c *collector) splitLines(p []byte) []string {
	if c.onLine == nil {
		return nil
	}
	var lines []string
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		c.partial = append(c.partial, p[:i]...)
		lines = append(lines, string(bytes.TrimRight(c.partial, "\r")))
		c.partial = c.partial[:0]
		p = p[i+1:]
	}
	if len(c.partial)+len(p) <= maxLineBytes {
		c.partial = append(c.partial, p...)
	}
	return lines
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isBinary {
		return "[Binary Content]"
	}
	return c.buffer.String()
}

func (c *collector) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// isBinaryContent looks for NUL bytes, treating UTF-16 and UTF-32 BOMs as
// text.
func isBinaryContent(content []byte) bool {
	if len(content) >= 2 {
		if (content[0] == 0xFF && content[1] == 0xFE) ||
			(content[0] == 0xFE && content[1] == 0xFF) {
			return false
		}
	}
	if len(content) >= 4 {
		if content[0] == 0x00 && content[1] == 0x00 && content[2] == 0xFE && content[3] == 0xFF {
			return false
		}
	}
	return bytes.IndexByte(content, 0) >= 0
}
