package aircraft

import (
	"github.com/MichaelTJones/pcg"
)

// Source is the random number source used to generate anomalous aircraft.
// Tests inject a fixed sequence; production uses a seeded PCG32.
type Source interface {
	// Float64 returns a value in [0,1)
	Float64() float64

	// Intn returns a value in [0,n)
	Intn(n int) int
}

// pcgStream selects the PCG32 output sequence
const pcgStream = 0xda3e39cb94b95bdb

// PCGSource is a deterministic Source backed by PCG32
type PCGSource struct {
	r *pcg.PCG32
}

// NewSource returns a PCG32 source seeded with seed
func NewSource(seed int64) *PCGSource {
	r := pcg.NewPCG32()
	r.Seed(uint64(seed), pcgStream)
	return &PCGSource{r: r}
}

// Float64 implements Source
func (s *PCGSource) Float64() float64 {
	return float64(s.r.Random()) / (1 << 32)
}

// Intn implements Source
func (s *PCGSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.r.Bounded(uint32(n)))
}

// between draws uniformly from r
func between(src Source, r Range) float64 {
	return r.Min + src.Float64()*(r.Max-r.Min)
}

func chance(src Source, p float64) bool {
	return src.Float64() < p
}
