package waste

// Batch groups measurements per category. Measurements keep the order in
// which the portal returned them. Categories without measurements are absent.
type Batch struct {
	groups map[Category][]Measurement
}

// Aggregate builds a Batch from parsed entries without modifying them.
func Aggregate(entries []Entry) Batch {
	groups := make(map[Category][]Measurement)
	for _, e := range entries {
		groups[e.Category] = append(groups[e.Category], e.Measurement)
	}
	return Batch{groups: groups}
}

// Get returns a copy of the measurements recorded under c.
func (b Batch) Get(c Category) []Measurement {
	src := b.groups[c]
	if len(src) == 0 {
		return nil
	}
	out := make([]Measurement, len(src))
	copy(out, src)
	return out
}

// Has reports whether at least one measurement exists for c.
func (b Batch) Has(c Category) bool {
	return len(b.groups[c]) > 0
}

// Categories lists the categories present in the batch, in delivery order.
func (b Batch) Categories() []Category {
	var out []Category
	for _, c := range Categories() {
		if b.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Len is the total number of measurements across all categories.
func (b Batch) Len() int {
	n := 0
	for _, ms := range b.groups {
		n += len(ms)
	}
	return n
}
