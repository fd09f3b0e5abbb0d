package snapshot

import "sync"

// Store holds the latest JPEG of one device. The device loop writes it;
// HTTP handlers read it. Every access copies under the mutex.
type Store struct {
	mu      sync.RWMutex
	data    []byte
	version uint64
	notify  map[chan struct{}]struct{}
}

func NewStore() *Store {
	return &Store{notify: make(map[chan struct{}]struct{})}
}

// Update replaces the content and wakes stream subscribers
func (s *Store) Update(jpeg []byte) {
	buf := make([]byte, len(jpeg))
	copy(buf, jpeg)

	s.mu.Lock()
	s.data = buf
	s.version++
	for ch := range s.notify {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// Read returns a copy of the latest snapshot, nil if none was stored yet
func (s *Store) Read() []byte {
	b, _ := s.ReadVersion()
	return b
}

// ReadVersion returns a copy and the update counter it belongs to
func (s *Store) ReadVersion() ([]byte, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, s.version
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, s.version
}

// Len returns the size of the stored snapshot
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Subscribe returns a channel signalled after every Update, and a cancel func
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.notify[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.notify, ch)
			s.mu.Unlock()
		})
	}
}
