// Package scrambler handles name generation and the persistent rename map.
package scrambler

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/whit3rabbit/pymixer/internal/config"
)

const (
	// Characters for the different scramble modes. The numeric mode leads
	// with a letter because identifiers cannot start with a digit.
	firstCharsIdentifier = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	allCharsIdentifier   = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
	firstCharsHex        = "abcdefABCDEF"
	allCharsHex          = "0123456789abcdefABCDEF"
	firstCharsNumeric    = "O"
	allCharsNumeric      = "0123456789"

	// Limits
	maxIdentifierLen = 16
	maxHexNumericLen = 32
	minScrambleLen   = 2
	maxRegenAttempts = 50

	// Context serialization version
	contextVersion = "pymixer-scramble-v1.0"
)

// CollisionError reports that no unique replacement name could be generated.
// It aborts the file being processed: emitting a colliding identifier would
// silently change program behavior.
type CollisionError struct {
	Name     string
	Attempts int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("failed to generate unique scrambled name for %q after %d attempts", e.Name, e.Attempts)
}

// scramblerState holds the data that needs to be persisted.
// Fields are exported for gob encoding.
type scramblerState struct {
	Version      string
	ScrambleMap  map[string]string // original -> scrambled
	RScrambleMap map[string]string // scrambled -> original
	Taken        map[string]bool
	CurrentLen   int
}

// Scrambler manages the program-wide renaming map. Generated names are unique
// against every name ever seen or produced, across all files of a run, so two
// distinct symbols can never end up sharing a replacement.
type Scrambler struct {
	cfg           *config.Config
	rng           *rand.Rand
	mode          string
	targetLength  int
	minLength     int
	maxLength     int
	currentLength int

	// State to be persisted (protected by mutex)
	scrambleMap  map[string]string // original -> scrambled
	rScrambleMap map[string]string // scrambled -> original
	taken        map[string]bool   // every source or generated name

	mu sync.RWMutex
}

// NewScrambler creates a scrambler drawing names from rng.
func NewScrambler(cfg *config.Config, rng *rand.Rand) (*Scrambler, error) {
	s := &Scrambler{
		cfg:          cfg,
		rng:          rng,
		scrambleMap:  make(map[string]string),
		rScrambleMap: make(map[string]string),
		taken:        make(map[string]bool),
	}

	s.mode = strings.ToLower(cfg.Obfuscation.Scrambling.Mode)
	if s.mode == "" {
		s.mode = "identifier"
	}
	s.minLength = minScrambleLen
	s.maxLength = maxIdentifierLen
	switch s.mode {
	case "identifier":
		// default max length ok
	case "hexa", "numeric":
		s.maxLength = maxHexNumericLen
	default:
		return nil, fmt.Errorf("invalid scramble mode %q", cfg.Obfuscation.Scrambling.Mode)
	}
	s.targetLength = cfg.Obfuscation.Scrambling.Length
	if s.targetLength < s.minLength {
		s.targetLength = s.minLength
	}
	if s.targetLength > s.maxLength {
		s.targetLength = s.maxLength
	}
	s.currentLength = s.targetLength

	return s, nil
}

// SetRand swaps the random source. Each file gets its own seeded source so
// output is reproducible regardless of processing order.
func (s *Scrambler) SetRand(rng *rand.Rand) {
	s.mu.Lock()
	s.rng = rng
	s.mu.Unlock()
}

// Reserve marks a source name as taken so it can never be produced as a
// replacement for some other symbol.
func (s *Scrambler) Reserve(name string) {
	s.mu.Lock()
	s.taken[name] = true
	s.mu.Unlock()
}

// Scramble returns the replacement for originalName, generating and
// remembering one on first use. The same original always maps to the same
// replacement within a run.
func (s *Scrambler) Scramble(originalName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scrambled, exists := s.scrambleMap[originalName]; exists {
		return scrambled, nil
	}

	for attempt := 0; attempt < maxRegenAttempts; attempt++ {
		candidate := s.generateScrambledName()
		if isReserved(candidate) {
			continue
		}
		if s.taken[candidate] {
			if attempt > 5 && s.currentLength < s.maxLength {
				s.currentLength++ // widen the space before retrying
			}
			continue
		}
		if _, exists := s.rScrambleMap[candidate]; exists {
			if attempt > 5 && s.currentLength < s.maxLength {
				s.currentLength++
			}
			continue
		}
		s.scrambleMap[originalName] = candidate
		s.rScrambleMap[candidate] = originalName
		s.taken[candidate] = true
		return candidate, nil
	}
	return "", &CollisionError{Name: originalName, Attempts: maxRegenAttempts}
}

// Unscramble looks up the original name given a scrambled name.
func (s *Scrambler) Unscramble(scrambledName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	original, found := s.rScrambleMap[scrambledName]
	return original, found
}

// LookupObfuscated returns the replacement previously generated for original.
func (s *Scrambler) LookupObfuscated(original string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scrambled, found := s.scrambleMap[original]
	return scrambled, found
}

// Absorb merges another scrambler's mappings into this one. Used to fold
// per-file results into the shared registry that persistence and reverse
// lookups read from.
func (s *Scrambler) Absorb(mappings map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for original, scrambled := range mappings {
		s.scrambleMap[original] = scrambled
		s.rScrambleMap[scrambled] = original
		s.taken[scrambled] = true
	}
}

// Mappings returns a copy of the original -> scrambled map.
func (s *Scrambler) Mappings() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.scrambleMap))
	for k, v := range s.scrambleMap {
		out[k] = v
	}
	return out
}

func (s *Scrambler) generateScrambledName() string {
	var firstChars, allChars string
	length := s.currentLength
	switch s.mode {
	case "numeric":
		firstChars = firstCharsNumeric
		allChars = allCharsNumeric
	case "hexa":
		firstChars = firstCharsHex
		allChars = allCharsHex
	case "identifier":
		fallthrough
	default:
		firstChars = firstCharsIdentifier
		allChars = allCharsIdentifier
	}
	if length < s.minLength {
		length = s.minLength
	}
	if length > s.maxLength {
		length = s.maxLength
	}
	sb := strings.Builder{}
	sb.Grow(length)
	sb.WriteByte(firstChars[s.rng.Intn(len(firstChars))])
	for i := 1; i < length; i++ {
		sb.WriteByte(allChars[s.rng.Intn(len(allChars))])
	}
	return sb.String()
}

// --- Context Persistence ---

// SaveState saves the scrambler's current mapping state to a file.
func (s *Scrambler) SaveState(filePath string) error {
	s.mu.RLock()
	state := scramblerState{
		Version:      contextVersion,
		ScrambleMap:  s.scrambleMap,
		RScrambleMap: s.rScrambleMap,
		Taken:        s.taken,
		CurrentLen:   s.currentLength,
	}
	s.mu.RUnlock()

	var buffer bytes.Buffer
	encoder := gob.NewEncoder(&buffer)
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("failed to encode scrambler state: %w", err)
	}

	if err := os.WriteFile(filePath, buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write scrambler state to file %s: %w", filePath, err)
	}
	return nil
}

// LoadState loads the scrambler's state from a file, replacing the current
// state. A missing file is not an error: it just means no previous run.
func (s *Scrambler) LoadState(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read scrambler state file %s: %w", filePath, err)
	}

	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	var state scramblerState

	if err := decoder.Decode(&state); err != nil {
		return fmt.Errorf("failed to decode scrambler state from file %s: %w", filePath, err)
	}

	if state.Version != contextVersion {
		return fmt.Errorf("incompatible context version: file has %q, expected %q", state.Version, contextVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replace, don't merge, to reflect the loaded state exactly.
	s.scrambleMap = state.ScrambleMap
	s.rScrambleMap = state.RScrambleMap
	s.taken = state.Taken
	s.currentLength = state.CurrentLen

	if s.scrambleMap == nil {
		s.scrambleMap = make(map[string]string)
	}
	if s.rScrambleMap == nil {
		s.rScrambleMap = make(map[string]string)
	}
	if s.taken == nil {
		s.taken = make(map[string]bool)
	}
	return nil
}
