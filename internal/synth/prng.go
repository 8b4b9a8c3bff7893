package synth

import (
	"math"
	"time"

	"github.com/miradorstack/covers-forecast/internal/utils"
)

// Salts separate the independent streams derived from one date.
const (
	SaltEvents  uint64 = 0
	SaltWeather uint64 = 1000
	SaltAnalogs uint64 = 2000
)

const golden = 0x9E3779B97F4A7C15

// Stream is a splitmix64 sequence keyed by (date, salt). It holds no shared
// state, so concurrent forecasts never observe each other's draws.
type Stream struct {
	state uint64
}

// NewStream returns the stream for the date's ordinal and salt.
func NewStream(date time.Time, salt uint64) *Stream {
	ordinal := uint64(utils.Ordinal(date))
	return &Stream{state: finalize(ordinal*golden) ^ finalize(salt+golden)}
}

// Uint64 advances the stream.
func (s *Stream) Uint64() uint64 {
	s.state += golden
	return finalize(s.state)
}

// Float64 returns a value in [0, 1).
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// Intn returns a value in [0, n). n <= 0 yields 0.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint64() % uint64(n))
}

// IntRange returns a value in [lo, hi], both ends inclusive.
func (s *Stream) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.Intn(hi-lo+1)
}

// Uniform returns a value in [lo, hi).
func (s *Stream) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.Float64()
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func finalize(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
