package runner

import "unicode/utf8"

// tailBuffer keeps the last limit bytes written to it. Build failures are
// reported at the end of the output, so the tail is what matters.
type tailBuffer struct {
	buf   []byte
	limit int
	lost  bool
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.lost = t.lost || len(t.buf) > 0 || len(p) > t.limit
		t.buf = append(t.buf[:0], p[runeCut(p, len(p)-t.limit):]...)
		return n, nil
	}
	if over := len(t.buf) + len(p) - t.limit; over > 0 {
		t.lost = true
		t.buf = append(t.buf[:0], t.buf[runeCut(t.buf, over):]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// runeCut moves a cut at b[i:] forward to the next rune boundary so the
// kept tail never opens with a partial UTF-8 sequence.
func runeCut(b []byte, i int) int {
	for n := 0; i < len(b) && n < utf8.UTFMax-1 && !utf8.RuneStart(b[i]); n++ {
		i++
	}
	return i
}

// Bytes returns the retained tail.
func (t *tailBuffer) Bytes() []byte {
	if t == nil {
		return nil
	}
	return t.buf
}

// Truncated reports whether earlier output was dropped.
func (t *tailBuffer) Truncated() bool {
	return t != nil && t.lost
}
