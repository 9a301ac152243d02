package facts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// SignalStore provides in-memory storage and querying of quality signals with JSONL persistence.
type SignalStore struct {
	mu      sync.RWMutex
	signals []QualitySignal

	// Indexes for fast lookups
	byKind map[string][]int // kind -> indices into signals
	byFile map[string][]int // file -> indices into signals
}

// NewSignalStore creates an empty signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		byKind: make(map[string][]int),
		byFile: make(map[string][]int),
	}
}

// Add adds signals to the store.
func (s *SignalStore) Add(ss ...QualitySignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range ss {
		idx := len(s.signals)
		s.signals = append(s.signals, sig)
		s.byKind[sig.Kind] = append(s.byKind[sig.Kind], idx)
		if sig.Location.File != "" {
			s.byFile[sig.Location.File] = append(s.byFile[sig.Location.File], idx)
		}
	}
}

// All returns all signals in the store.
func (s *SignalStore) All() []QualitySignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]QualitySignal, len(s.signals))
	copy(result, s.signals)
	return result
}

// Count returns the number of signals in the store.
func (s *SignalStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

// ByKind returns all signals of the given kind.
func (s *SignalStore) ByKind(kind string) []QualitySignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectByIndex(s.byKind[kind])
}

// ByFile returns all signals located in the given file.
func (s *SignalStore) ByFile(file string) []QualitySignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectByIndex(s.byFile[file])
}

// Query returns signals matching all provided filter criteria.
// Empty filter values are ignored (match all). filePrefix matches a path prefix,
// text is a case-insensitive substring of the description.
func (s *SignalStore) Query(kind, filePrefix, text string) []QualitySignal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text = strings.ToLower(text)
	var result []QualitySignal
	for _, sig := range s.signals {
		if kind != "" && sig.Kind != kind {
			continue
		}
		if filePrefix != "" && !strings.HasPrefix(sig.Location.File, filePrefix) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(sig.Description), text) {
			continue
		}
		result = append(result, sig)
	}
	return result
}

// WriteJSONL writes all signals as JSONL to the given writer.
func (s *SignalStore) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for _, sig := range s.signals {
		if err := enc.Encode(sig); err != nil {
			return fmt.Errorf("encoding signal %s at %s: %w", sig.Kind, sig.Location.File, err)
		}
	}
	return nil
}

// ReadJSONL reads signals from a JSONL reader and adds them to the store.
func (s *SignalStore) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sig QualitySignal
		if err := json.Unmarshal(line, &sig); err != nil {
			return fmt.Errorf("decoding signal: %w", err)
		}
		s.Add(sig)
	}
	return scanner.Err()
}

func (s *SignalStore) collectByIndex(indices []int) []QualitySignal {
	result := make([]QualitySignal, 0, len(indices))
	for _, idx := range indices {
		if idx < len(s.signals) {
			result = append(result, s.signals[idx])
		}
	}
	return result
}
