package waste

// Category is one of the waste streams tracked by the portal.
type Category int

// Known categories, in the order they are delivered.
const (
	GFT Category = iota + 1
	REST
)

type categoryInfo struct {
	code   string
	metric string
}

var categories = map[Category]categoryInfo{
	GFT:  {code: "GFT", metric: "organicWaste"},
	REST: {code: "REST", metric: "residualWaste"},
}

// Categories returns every known category in delivery order.
func Categories() []Category {
	return []Category{GFT, REST}
}

// Code is the short code the portal embeds in row descriptions.
func (c Category) Code() string {
	return categories[c].code
}

// Metric is the EnergyID metric name for the category.
func (c Category) Metric() string {
	return categories[c].metric
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return c.Code()
}

// CategoryByCode resolves a portal code. The match is exact.
func CategoryByCode(code string) (Category, bool) {
	for _, c := range Categories() {
		if c.Code() == code {
			return c, true
		}
	}
	return 0, false
}
