package sim

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// RandomnessManager supplies reproducible per-simulant random streams.
//
// Every simulant is registered with a key built from the configured
// key_columns, folded into map_size slots. A draw is a pure function of
// (random_seed, stream name, simulant key, clock step), so it does not
// depend on the order components make decisions in, and a simulant keeps
// its draws across runs that add or remove unrelated components.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type RandomnessManager struct {
	seed       int64
	mapSize    uint64
	keyColumns []string
	clock      *Clock

	keys     []uint64
	ordinals map[string]int
	streams  map[string]*Stream
}

// NewRandomnessManager creates the randomness service for one run.
func NewRandomnessManager(cfg spec.RandomnessConfig, clock *Clock) *RandomnessManager {
	return &RandomnessManager{
		seed:       cfg.RandomSeed,
		mapSize:    uint64(cfg.MapSize),
		keyColumns: append([]string(nil), cfg.KeyColumns...),
		clock:      clock,
		ordinals:   make(map[string]int),
		streams:    make(map[string]*Stream),
	}
}

// Seed returns the master seed for the run.
func (m *RandomnessManager) Seed() int64 { return m.seed }

// Registered returns how many simulants have randomness keys.
func (m *RandomnessManager) Registered() int { return len(m.keys) }

// RegisterSimulants assigns randomness keys to the new rows [start, end).
// The key columns must already be initialized, so the population component
// calls this after filling in ages and entrance times. Simulants whose
// key columns collide get a deterministic ordinal suffix.
func (m *RandomnessManager) RegisterSimulants(t *Table, start, end int) error {
	if len(m.keys) != start {
		return fmt.Errorf("randomness keys misaligned: %d registered, new rows start at %d", len(m.keys), start)
	}
	for i := start; i < end; i++ {
		parts := make([]string, len(m.keyColumns))
		for ci, col := range m.keyColumns {
			val, err := t.KeyValue(col, i)
			if err != nil {
				return fmt.Errorf("randomness key_columns: %w", err)
			}
			parts[ci] = col + "=" + val
		}
		base := strings.Join(parts, "|")
		ordinal := m.ordinals[base]
		m.ordinals[base] = ordinal + 1
		if ordinal > 0 {
			base += "#" + strconv.Itoa(ordinal)
		}
		m.keys = append(m.keys, fnv1a64(base)%m.mapSize)
	}
	return nil
}

// Stream returns the named decision-point stream. The same name always
// returns the same *Stream instance.
func (m *RandomnessManager) Stream(name string) *Stream {
	if s, ok := m.streams[name]; ok {
		return s
	}
	s := &Stream{m: m, name: name, hash: fnv1a64(name)}
	m.streams[name] = s
	return s
}

func (m *RandomnessManager) key(i int) uint64 {
	if i >= len(m.keys) {
		panic(fmt.Sprintf("sim: simulant %d has no randomness key; population must register new simulants before drawing", i))
	}
	return m.keys[i]
}

// Stream is one decision point's source of uniform draws.
type Stream struct {
	m    *RandomnessManager
	name string
	hash uint64
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Draw returns a uniform value in [0, 1) for simulant i at the current
// clock step.
func (s *Stream) Draw(i int) float64 {
	x := uint64(s.m.seed)
	x = mix64(x ^ s.hash)
	x = mix64(x ^ s.m.key(i))
	x = mix64(x ^ uint64(s.m.clock.Step()))
	return toUnit(x)
}

// DrawKeyless returns a uniform value for a decision not tied to one
// simulant, keyed by an explicit salt instead.
func (s *Stream) DrawKeyless(salt string) float64 {
	x := uint64(s.m.seed)
	x = mix64(x ^ s.hash)
	x = mix64(x ^ fnv1a64(salt))
	x = mix64(x ^ uint64(s.m.clock.Step()))
	return toUnit(x)
}

// Bernoulli reports success with probability p for simulant i.
func (s *Stream) Bernoulli(i int, p float64) bool {
	return s.Draw(i) < p
}

// Choice picks an index proportionally to weights using a single draw.
// Weights need not be normalized; all-zero weights pick the last index.
func (s *Stream) Choice(i int, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	u := s.Draw(i) * total
	acc := 0.0
	for idx, w := range weights {
		acc += w
		if u < acc {
			return idx
		}
	}
	return len(weights) - 1
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// mix64 is the splitmix64 finalizer; it decorrelates the combined
// seed/stream/key/step words.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// toUnit maps a 64-bit word to [0, 1) with 53-bit precision.
func toUnit(x uint64) float64 {
	return float64(x>>11) / (1 << 53)
}
