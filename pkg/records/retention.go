package records

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Seconds per duration unit keyword. A month is a fixed 30 days.
var unitSeconds = map[string]int64{
	"year":   365 * 24 * 60 * 60,
	"years":  365 * 24 * 60 * 60,
	"month":  30 * 24 * 60 * 60,
	"months": 30 * 24 * 60 * 60,
	"day":    24 * 60 * 60,
	"days":   24 * 60 * 60,
	"hrs":    60 * 60,
	"min":    60,
	"mins":   60,
}

// RetentionRecord is one retention class to create.
type RetentionRecord struct {
	Name string
	// Retention period in seconds
	Period int64
}

// UnitSeconds reports how many seconds a duration keyword stands for.
func UnitSeconds(unit string) (int64, bool) {
	s, ok := unitSeconds[unit]
	return s, ok
}

// ParseRetentionLine builds a record from one input line such as
// "gold 2 years 3 month". The first token is the name. Every unit keyword
// after it adds the most recent integer seen times the unit's length.
// Tokens that are neither integers nor units are ignored. ok is false for
// lines without tokens and for periods that do not fit in an int64.
func ParseRetentionLine(line string) (rec RetentionRecord, ok bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return RetentionRecord{}, false
	}

	rec.Name = tokens[0]
	var quantity int64
	for _, tok := range tokens[1:] {
		if n, isNum := parseQuantity(tok); isNum {
			quantity = n
			continue
		}
		if seconds, isUnit := unitSeconds[tok]; isUnit {
			if quantity > math.MaxInt64/seconds || rec.Period > math.MaxInt64-quantity*seconds {
				return RetentionRecord{}, false
			}
			rec.Period += quantity * seconds
		}
	}
	return rec, true
}

// Negative numbers are not quantities.
func parseQuantity(tok string) (int64, bool) {
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseRetention reads retention records from r in line order.
func ParseRetention(r io.Reader) ([]RetentionRecord, error) {
	var recs []RetentionRecord
	err := scanLines(r, func(lineNo int, line string) {
		rec, ok := ParseRetentionLine(line)
		if !ok {
			logSkipped(lineNo, line)
			return
		}
		recs = append(recs, rec)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read retention records")
	}
	return recs, nil
}

// ReadRetentionFile parses the retention file at path. On any open or read
// failure it returns no records and the error.
func ReadRetentionFile(path string) ([]RetentionRecord, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseRetention(f)
}
