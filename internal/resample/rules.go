package resample

// AggKind identifies an aggregation statistic.
type AggKind int

const (
	// AggSum totals the observations in each bucket; empty buckets total zero.
	AggSum AggKind = iota
	// AggAvg averages the non-missing observations in each bucket.
	AggAvg
	// AggMin takes the smallest non-missing observation in each bucket.
	AggMin
	// AggMax takes the largest non-missing observation in each bucket.
	AggMax
	// AggInt integrates over time: the bucket total scaled by the sampling
	// step in seconds.
	AggInt
)

// Suffix returns the column-name suffix appended by this aggregation.
func (k AggKind) Suffix() string {
	switch k {
	case AggSum:
		return "_sum"
	case AggAvg:
		return "_avg"
	case AggMin:
		return "_min"
	case AggMax:
		return "_max"
	case AggInt:
		return "_int"
	default:
		return "_unknown"
	}
}

// String returns the aggregation name.
func (k AggKind) String() string {
	switch k {
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggInt:
		return "int"
	default:
		return "unknown"
	}
}

// Rules lists which columns aggregate under which statistic. A column may
// appear in several groups and then yields one output column per group, each
// under its own suffix.
type Rules struct {
	Sum []string `yaml:"sum" json:"sum"`
	Avg []string `yaml:"avg" json:"avg"`
	Min []string `yaml:"min" json:"min"`
	Max []string `yaml:"max" json:"max"`
	Int []string `yaml:"int" json:"int"`
}

// DefaultRules returns the customary rule set for half-hourly meteorological
// tower tables: average air temperature, track temperature and vapor pressure
// deficit extremes, track flux maxima, and total precipitation.
func DefaultRules() Rules {
	return Rules{
		Avg: []string{"TA_F"},
		Min: []string{"TA_F", "VPD_F"},
		Max: []string{"LE_F", "H_F"},
		Sum: []string{"P_F"},
	}
}

// IsEmpty reports whether no columns are listed in any group.
func (r Rules) IsEmpty() bool {
	return len(r.Sum) == 0 && len(r.Avg) == 0 && len(r.Min) == 0 &&
		len(r.Max) == 0 && len(r.Int) == 0
}

// Columns returns every column referenced by any group, deduplicated, in
// group order (sum, avg, min, max, int).
func (r Rules) Columns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{r.Sum, r.Avg, r.Min, r.Max, r.Int} {
		for _, col := range group {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}
