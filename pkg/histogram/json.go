package histogram

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Truncate formats v at full precision and keeps exactly two digits after the
// decimal point. The UI expects truncation, not rounding: 0.129 becomes "0.12"
// and 4 becomes "4.00".
func Truncate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return s + ".00"
	}
	if len(s) > i+3 {
		return s[:i+3]
	}
	return s + strings.Repeat("0", i+3-len(s))
}

type gistJSON struct {
	Min  json.Number   `json:"min"`
	Max  json.Number   `json:"max"`
	Data []json.Number `json:"data"`
}

// MarshalJSON encodes the gist as {"min":..,"max":..,"data":[..]} with every
// number passed through Truncate.
func (g Gist) MarshalJSON() ([]byte, error) {
	out := gistJSON{
		Min:  json.Number(Truncate(g.Min)),
		Max:  json.Number(Truncate(g.Max)),
		Data: make([]json.Number, len(g.Counts)),
	}
	for i, c := range g.Counts {
		out.Data[i] = json.Number(Truncate(float64(c)))
	}
	return json.Marshal(out)
}
