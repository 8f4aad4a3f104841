// Package optimizer enumerates strategy parameter combinations and
// evaluates each on an isolated train/test split.
package optimizer

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"quantforge/internal/apperr"
	"quantforge/strategy"
)

// ParamType discriminates how a ParamSpec is discretized during enumeration.
type ParamType string

const (
	ParamTypeInt         ParamType = "int"
	ParamTypeFloat       ParamType = "float"
	ParamTypeCategorical ParamType = "categorical"
)

// ParamSpec describes one dimension of the search space. Int and Float
// dimensions are discretized by stepping from Min to Max inclusive;
// Categorical dimensions enumerate Values verbatim.
type ParamSpec struct {
	Type   ParamType
	Min    float64
	Max    float64
	Step   float64
	Values []string // categorical
}

func (p ParamSpec) Validate(name string) error {
	switch p.Type {
	case ParamTypeInt, ParamTypeFloat:
		if p.Step <= 0 {
			return apperr.Newf(apperr.KindConfig, "optimizer.ParamSpec.Validate",
				"parameter %q: step must be > 0", name)
		}
		if p.Max < p.Min {
			return apperr.Newf(apperr.KindConfig, "optimizer.ParamSpec.Validate",
				"parameter %q: max < min", name)
		}
	case ParamTypeCategorical:
		if len(p.Values) == 0 {
			return apperr.Newf(apperr.KindConfig, "optimizer.ParamSpec.Validate",
				"parameter %q: categorical requires at least one value", name)
		}
	default:
		return apperr.Newf(apperr.KindConfig, "optimizer.ParamSpec.Validate",
			"parameter %q: unknown type %q", name, p.Type)
	}
	return nil
}

// discretize enumerates every value this dimension takes, in ascending or
// listed order.
func (p ParamSpec) discretize() []strategy.ParamValue {
	switch p.Type {
	case ParamTypeCategorical:
		out := make([]strategy.ParamValue, len(p.Values))
		for i, v := range p.Values {
			out[i] = strategy.StringParam(v)
		}
		return out
	case ParamTypeInt:
		var out []strategy.ParamValue
		for v := p.Min; v <= p.Max+1e-9; v += p.Step {
			out = append(out, strategy.IntParam(int64(v)))
		}
		return out
	default: // float
		var out []strategy.ParamValue
		for v := p.Min; v <= p.Max+1e-9; v += p.Step {
			out = append(out, strategy.FloatParam(v))
		}
		return out
	}
}

// sample draws one value uniformly from the dimension's continuous or
// categorical domain.
func (p ParamSpec) sample(rng *rand.Rand) strategy.ParamValue {
	switch p.Type {
	case ParamTypeCategorical:
		return strategy.StringParam(p.Values[rng.Intn(len(p.Values))])
	case ParamTypeInt:
		span := int64((p.Max-p.Min)/p.Step) + 1
		return strategy.IntParam(int64(p.Min) + rng.Int63n(span)*int64(p.Step))
	default:
		return strategy.FloatParam(p.Min + rng.Float64()*(p.Max-p.Min))
	}
}

// ParamSpace is a named set of dimensions, ordered for deterministic grid
// enumeration (Go map iteration order is not stable, so Names is sorted
// once and reused).
type ParamSpace struct {
	dims  map[string]ParamSpec
	names []string
}

// NewParamSpace validates every dimension and freezes name ordering.
func NewParamSpace(dims map[string]ParamSpec) (*ParamSpace, error) {
	names := make([]string, 0, len(dims))
	for name, spec := range dims {
		if err := spec.Validate(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &ParamSpace{dims: dims, names: names}, nil
}

// Combination is one fully-resolved assignment of parameter values.
type Combination map[string]strategy.ParamValue

// Canonical renders params as a stable string for hashing, independent of
// map iteration order.
func (c Combination) Canonical() string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, n := range names {
		v := c[n]
		sb.WriteString(n)
		sb.WriteByte('=')
		switch v.Kind {
		case strategy.ParamInt:
			sb.WriteString(strconv.FormatInt(v.Int, 10))
		case strategy.ParamFloat:
			sb.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
		default:
			sb.WriteString(v.Str)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// Grid enumerates the Cartesian product of every dimension's discretized
// values.
func (s *ParamSpace) Grid() []Combination {
	if len(s.names) == 0 {
		return nil
	}
	combos := []Combination{{}}
	for _, name := range s.names {
		values := s.dims[name].discretize()
		var next []Combination
		for _, base := range combos {
			for _, v := range values {
				c := make(Combination, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[name] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// Random draws n uniform samples using the supplied seed, one independent
// rand.Rand per call so results are reproducible for a given seed.
func (s *ParamSpace) Random(n int, seed int64) []Combination {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Combination, 0, n)
	for i := 0; i < n; i++ {
		c := make(Combination, len(s.names))
		for _, name := range s.names {
			c[name] = s.dims[name].sample(rng)
		}
		out = append(out, c)
	}
	return out
}

// Names returns the space's dimension names in stable (sorted) order.
func (s *ParamSpace) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (c Combination) String() string {
	return fmt.Sprintf("%v", map[string]strategy.ParamValue(c))
}
