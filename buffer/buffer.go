package buffer

// Stream is a fixed capacity sliding window of samples. When full, feeding a
// new sample evicts the oldest one. Streams are only touched from the
// scheduler loop so there is no locking.
type Stream struct {
	position int // next write slot
	count    int
	size     int
	data     []float64
}

func NewStream(size int) *Stream {
	if size < 1 {
		size = 1
	}
	return &Stream{
		size: size,
		data: make([]float64, size),
	}
}

// Feed appends val, dropping the oldest sample if the window is full.
func (s *Stream) Feed(val float64) {
	s.data[s.position] = val
	s.position += 1
	if s.position == s.size {
		s.position = 0
	}
	if s.count < s.size {
		s.count += 1
	}
}

// Reset discards every sample.
func (s *Stream) Reset() {
	s.position = 0
	s.count = 0
}

// Average returns the mean of the samples currently held. ok is false when
// the stream is empty.
func (s *Stream) Average() (avg float64, ok bool) {
	if s.count == 0 {
		return 0, false
	}
	// oldest sample sits count places behind the write position
	index := s.position - s.count
	if index < 0 {
		index += s.size
	}
	sum := 0.0
	for i := 0; i < s.count; i++ {
		sum += s.data[index]
		index += 1
		if index == s.size {
			index = 0
		}
	}
	return sum / float64(s.count), true
}

func (s *Stream) Len() int {
	return s.count
}

func (s *Stream) Cap() int {
	return s.size
}

// Last returns the most recently fed sample.
func (s *Stream) Last() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	index := s.position - 1
	if index < 0 {
		index += s.size
	}
	return s.data[index], true
}
