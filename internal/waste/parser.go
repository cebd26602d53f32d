package waste

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// DescriptionIndex is the position of the weighing description in a row.
const DescriptionIndex = 2

// FeeIndex is the position of the HTML fee cell in a row.
const FeeIndex = 3

// Groups: day, month, year, category code, weight.
var descriptionRE = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4}) ([A-Z]+)\d+ \d+ (\d+\.\d+) kg$`)

var (
	// ErrShortRow is returned when a row has no description column.
	ErrShortRow = errors.New("row has no description column")
	// ErrNoMatch is returned when the description does not have the expected shape.
	ErrNoMatch = errors.New("description does not match expected format")
	// ErrUnknownCategory is returned for category codes outside the known set.
	ErrUnknownCategory = errors.New("unknown waste category")
	// ErrInvalidDate is returned for impossible calendar dates such as 31/02.
	ErrInvalidDate = errors.New("invalid calendar date")
)

// ParseError reports a portal row that could not be turned into a measurement.
type ParseError struct {
	Row RawRow
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse row %q: %v", []string(e.Row), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts a raw portal row into its category and measurement.
func Parse(row RawRow) (Category, Measurement, error) {
	if len(row) <= DescriptionIndex {
		return 0, Measurement{}, &ParseError{Row: row, Err: ErrShortRow}
	}
	groups := descriptionRE.FindStringSubmatch(row[DescriptionIndex])
	if groups == nil {
		return 0, Measurement{}, &ParseError{Row: row, Err: ErrNoMatch}
	}

	day, _ := strconv.Atoi(groups[1])
	month, _ := strconv.Atoi(groups[2])
	year, _ := strconv.Atoi(groups[3])
	date := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !date.IsValid() {
		return 0, Measurement{}, &ParseError{Row: row, Err: fmt.Errorf("%w: %s", ErrInvalidDate, groups[0][:10])}
	}

	category, ok := CategoryByCode(groups[4])
	if !ok {
		return 0, Measurement{}, &ParseError{Row: row, Err: fmt.Errorf("%w: %q", ErrUnknownCategory, groups[4])}
	}

	weight, err := decimal.NewFromString(groups[5])
	if err != nil {
		return 0, Measurement{}, &ParseError{Row: row, Err: err}
	}

	return category, Measurement{Date: date, Weight: weight}, nil
}

// ParseAll parses rows in order and stops at the first failure.
func ParseAll(rows []RawRow) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		category, m, err := Parse(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Category: category, Measurement: m})
	}
	return entries, nil
}

// ParseFee extracts the euro amount from a fee cell such as
// "<div class='cRight'>€ -0,10</div>".
func ParseFee(cell string) (decimal.Decimal, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cell))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read fee cell: %w", err)
	}
	text := strings.Map(func(r rune) rune {
		switch r {
		case '€', ' ', '\u00a0', '\t', '\n', '.':
			return -1
		case ',':
			return '.'
		}
		return r
	}, doc.Text())
	if text == "" {
		return decimal.Decimal{}, fmt.Errorf("fee cell %q has no amount", cell)
	}
	fee, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse fee %q: %w", text, err)
	}
	return fee, nil
}
