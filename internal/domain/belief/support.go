package belief

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/corey/aswin/internal/ports"
)

// Support is a belief support: the product states with nonzero belief, in
// canonical ascending order without duplicates.
type Support []ports.ProductState

// NewSupport returns the canonical form of states. The input is not modified.
func NewSupport(states []ports.ProductState) Support {
	out := make(Support, len(states))
	copy(out, states)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	n := 0
	for i, ps := range out {
		if i > 0 && ps == out[n-1] {
			continue
		}
		out[n] = ps
		n++
	}
	return out[:n]
}

// Singleton returns the support containing only ps.
func Singleton(ps ports.ProductState) Support {
	return Support{ps}
}

// Key returns a canonical byte string usable as a map key. Two supports have
// the same key iff they hold the same product states.
func (s Support) Key() string {
	buf := make([]byte, 0, len(s)*4)
	for _, ps := range s {
		buf = binary.AppendUvarint(buf, uint64(ps.State))
		buf = binary.AppendUvarint(buf, uint64(ps.Aut))
	}
	return string(buf)
}

// Contains reports whether ps is in the support.
func (s Support) Contains(ps ports.ProductState) bool {
	i := sort.Search(len(s), func(i int) bool { return !s[i].Less(ps) })
	return i < len(s) && s[i] == ps
}

// States returns the distinct POMDP states in the support, ascending.
func (s Support) States() []int {
	out := make([]int, 0, len(s))
	for _, ps := range s {
		if len(out) == 0 || out[len(out)-1] != ps.State {
			out = append(out, ps.State)
		}
	}
	return out
}

// Names renders every product state through dyn.
func (s Support) Names(dyn ports.Dynamics) []string {
	out := make([]string, len(s))
	for i, ps := range s {
		out[i] = dyn.Name(ps)
	}
	return out
}

// Format renders the support as "{a, b}".
func (s Support) Format(dyn ports.Dynamics) string {
	return "{" + strings.Join(s.Names(dyn), ", ") + "}"
}
