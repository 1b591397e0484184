package reconstruct

// History is a fixed-capacity ring of reconstruction ratios. It never
// grows; once full each push overwrites the oldest entry.
type History struct {
	values []float32
	next   int
	full   bool
}

func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}

	return &History{values: make([]float32, size)}
}

func (h *History) Push(ratio float32) {
	h.values[h.next] = ratio
	h.next++
	if h.next == len(h.values) {
		h.next = 0
		h.full = true
	}
}

func (h *History) Len() int {
	if h.full {
		return len(h.values)
	}

	return h.next
}

func (h *History) Cap() int {
	return len(h.values)
}

// Values returns a copy of the stored ratios, oldest first.
func (h *History) Values() []float32 {
	out := make([]float32, 0, h.Len())
	if h.full {
		out = append(out, h.values[h.next:]...)
	}

	return append(out, h.values[:h.next]...)
}

func (h *History) Last() (float32, bool) {
	if h.Len() == 0 {
		return 0, false
	}
	i := h.next - 1
	if i < 0 {
		i = len(h.values) - 1
	}

	return h.values[i], true
}

func (h *History) Mean() float32 {
	n := h.Len()
	if n == 0 {
		return 0
	}
	var sum float32
	for _, v := range h.Values() {
		sum += v
	}

	return sum / float32(n)
}
