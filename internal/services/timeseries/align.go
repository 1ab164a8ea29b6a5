package timeseries

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// dateKey is the column name of the date in a flattened row.
const dateKey = "date"

// Sample is one (date, follower count) observation.
type Sample struct {
	Date      string `json:"date"`
	Followers int64  `json:"followers"`
}

// Series is a named sequence of samples, one per competitor account.
type Series struct {
	Name string   `json:"name"`
	Data []Sample `json:"data"`
}

// AlignedRow holds every series' count for one date.
// A series without a sample on Date has no key in Values.
type AlignedRow struct {
	Date   string
	Values map[string]int64
}

// Value returns the count for name and whether the series had a sample that day.
func (r AlignedRow) Value(name string) (int64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// MarshalJSON renders the row flat: {"date": "...", "<series>": n, ...}.
func (r AlignedRow) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Values)+1)
	for name, v := range r.Values {
		flat[name] = v
	}
	flat[dateKey] = r.Date
	return json.Marshal(flat)
}

func (r *AlignedRow) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	raw, ok := flat[dateKey]
	if !ok {
		return fmt.Errorf("timeseries: aligned row without %q", dateKey)
	}
	if err := json.Unmarshal(raw, &r.Date); err != nil {
		return fmt.Errorf("timeseries: aligned row date: %w", err)
	}
	r.Values = make(map[string]int64, len(flat)-1)
	for name, msg := range flat {
		if name == dateKey {
			continue
		}
		var v int64
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("timeseries: aligned row %q: %w", name, err)
		}
		r.Values[name] = v
	}
	return nil
}

// DuplicatePolicy decides what happens when a series has two samples for one date.
// The zero value is FirstWins. A later series with the same name still replaces
// values set by an earlier one unless the policy is Reject.
type DuplicatePolicy int

const (
	FirstWins DuplicatePolicy = iota
	LastWins
	Reject
)

func (p DuplicatePolicy) String() string {
	switch p {
	case FirstWins:
		return "first"
	case LastWins:
		return "last"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// ParseDuplicatePolicy accepts "first", "last" and "reject" in any case. Empty means FirstWins.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return FirstWins, nil
	case "last":
		return LastWins, nil
	case "reject":
		return Reject, nil
	}
	return FirstWins, fmt.Errorf("timeseries: unknown duplicate policy %q", s)
}

type options struct {
	policy DuplicatePolicy
}

// Option configures Align.
type Option func(*options)

func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) { o.policy = p }
}

// Aligned is the result of Align: rows ascending by date, one per distinct date.
type Aligned struct {
	names []string
	dates []Date
	index map[string]map[Date]int64
}

// Align merges series onto one shared, sorted date axis.
//
// Every sample is indexed by series name and calendar date in a single pass,
// the union of dates is sorted once, and each row is filled with map lookups.
// Inputs are never modified.
func Align(series []Series, opts ...Option) (*Aligned, error) {
	o := options{policy: FirstWins}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Aligned{
		names: make([]string, 0, len(series)),
		index: make(map[string]map[Date]int64, len(series)),
	}
	seen := make(map[Date]struct{})

	for _, s := range series {
		if s.Name == "" {
			return nil, ErrEmptySeriesName
		}
		if s.Name == dateKey {
			return nil, fmt.Errorf("%w: %q", ErrReservedSeriesName, s.Name)
		}
		byDate, ok := a.index[s.Name]
		if !ok {
			byDate = make(map[Date]int64, len(s.Data))
			a.index[s.Name] = byDate
			a.names = append(a.names, s.Name)
		}

		own := make(map[Date]struct{}, len(s.Data))
		for i, sample := range s.Data {
			d, err := ParseDate(sample.Date)
			if err != nil {
				return nil, &DateError{Series: s.Name, Index: i, Value: sample.Date, Err: err}
			}
			if sample.Followers < 0 {
				return nil, fmt.Errorf("%w: series %q sample %d (%d)", ErrNegativeCount, s.Name, i, sample.Followers)
			}
			if _, dup := byDate[d]; dup {
				switch o.policy {
				case Reject:
					return nil, &DuplicateError{Series: s.Name, Date: d.String()}
				case FirstWins:
					if _, mine := own[d]; mine {
						continue
					}
				}
			}
			own[d] = struct{}{}
			byDate[d] = sample.Followers
			seen[d] = struct{}{}
		}
	}

	a.dates = make([]Date, 0, len(seen))
	for d := range seen {
		a.dates = append(a.dates, d)
	}
	slices.Sort(a.dates)
	return a, nil
}

// All yields the rows lazily in ascending date order.
func (a *Aligned) All() iter.Seq[AlignedRow] {
	return func(yield func(AlignedRow) bool) {
		if a == nil {
			return
		}
		for _, d := range a.dates {
			if !yield(a.row(d)) {
				return
			}
		}
	}
}

func (a *Aligned) row(d Date) AlignedRow {
	values := make(map[string]int64, len(a.names))
	for _, name := range a.names {
		if v, ok := a.index[name][d]; ok {
			values[name] = v
		}
	}
	return AlignedRow{Date: d.String(), Values: values}
}

// Rows materialises All.
func (a *Aligned) Rows() []AlignedRow {
	rows := make([]AlignedRow, 0, a.Len())
	for row := range a.All() {
		rows = append(rows, row)
	}
	return rows
}

func (a *Aligned) Len() int {
	if a == nil {
		return 0
	}
	return len(a.dates)
}

// Dates returns the shared axis.
func (a *Aligned) Dates() []Date {
	if a == nil {
		return nil
	}
	return slices.Clone(a.dates)
}

// Names returns series names in first-seen input order, including series with no samples.
func (a *Aligned) Names() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.names)
}

// Column returns one series projected onto the shared axis; ok[i] is false where it has no sample.
func (a *Aligned) Column(name string) (values []int64, ok []bool) {
	if a == nil {
		return nil, nil
	}
	byDate := a.index[name]
	values = make([]int64, len(a.dates))
	ok = make([]bool, len(a.dates))
	for i, d := range a.dates {
		values[i], ok[i] = byDate[d]
	}
	return values, ok
}

// Latest returns the most recent count of every series that has at least one sample.
func (a *Aligned) Latest() map[string]int64 {
	out := make(map[string]int64)
	if a == nil {
		return out
	}
	for _, name := range a.names {
		var (
			last  Date
			found bool
		)
		for d := range a.index[name] {
			if !found || d > last {
				last, found = d, true
			}
		}
		if found {
			out[name] = a.index[name][last]
		}
	}
	return out
}

// MarshalJSON renders the rows as a JSON array; an empty result is [].
func (a *Aligned) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Rows())
}
