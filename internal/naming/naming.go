// Package naming parses measurement column names following the flux-network
// position convention MEASTYPE_H_V_R, where H and V are the horizontal and
// vertical sensor position labels and R is the replicate number. Measurement
// types may themselves contain underscores (e.g. SWC_F), which shifts the
// position tokens right accordingly.
package naming

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gremau/ecoflux-tools/internal/errors"
)

// LocationMap maps "{meas}_{H}" keys to the vertical position labels found for
// that horizontal position, in column-encounter order.
type LocationMap map[string][]string

// Keys returns the horizontal position keys in sorted order.
func (m LocationMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type options struct {
	excludes []string
}

// Option configures the column-name scan.
type Option func(*options)

// WithExclude drops columns containing the given substring from the scan. It
// may be repeated to exclude several substrings.
func WithExclude(substr string) Option {
	return func(o *options) {
		o.excludes = append(o.excludes, substr)
	}
}

// Locations scans column names for the given measurement type and groups the
// vertical position labels of matching columns by horizontal position. A
// column matches when it contains "{meas}_" and none of the configured
// exclusion substrings. Matching columns with too few position tokens yield a
// malformed-name error.
func Locations(cols []string, meas string, opts ...Option) (LocationMap, error) {
	if meas == "" {
		return nil, errors.NewInvalidInputError("Locations", "measurement type must not be empty")
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	// The measurement type may contain underscores itself; the position
	// tokens start after all of them.
	u := strings.Count(meas, "_")
	horizPos := 1 + u
	vertPos := 2 + u

	locations := make(LocationMap)
	for _, col := range cols {
		if !strings.Contains(col, meas+"_") {
			continue
		}
		if excluded(col, opt.excludes) {
			continue
		}

		parts := strings.Split(col, "_")
		if len(parts) <= vertPos {
			return nil, errors.NewMalformedNameError("Locations", col,
				fmt.Sprintf("expected at least %d underscore-separated tokens, got %d", vertPos+1, len(parts)))
		}

		key := meas + "_" + parts[horizPos]
		locations[key] = append(locations[key], parts[vertPos])
	}

	return locations, nil
}

func excluded(col string, excludes []string) bool {
	for _, substr := range excludes {
		if substr != "" && strings.Contains(col, substr) {
			return true
		}
	}
	return false
}
