package powergrid

// Mean is a rolling mean over the last Window samples.
type Mean struct {
	buf  []float64
	next int
	n    int
	sum  float64
}

func NewMean(window int) *Mean {
	if window < 1 {
		window = 1
	}
	return &Mean{buf: make([]float64, window)}
}

func (m *Mean) Add(v float64) {
	if m.n == len(m.buf) {
		m.sum -= m.buf[m.next]
	} else {
		m.n++
	}
	m.buf[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % len(m.buf)
}

func (m *Mean) Value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func (m *Mean) Window() int { return len(m.buf) }
