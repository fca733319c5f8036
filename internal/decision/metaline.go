package decision

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Field names reported by FieldError.
const (
	FieldTitle         = "title"
	FieldMetaTitle     = "meta_title"
	FieldCourt         = "court"
	FieldDecisionStyle = "decision_style"
	FieldDate          = "date"
	FieldFileNumber    = "file_number"
)

var (
	// ErrPatternMiss marks a required field whose pattern did not match.
	ErrPatternMiss = errors.New("pattern did not match")
	// ErrMissingElement marks a required element that is absent from the page.
	ErrMissingElement = errors.New("element not found")
)

var (
	styleRe = regexp.MustCompile(`,\s*([A-Za-zÄÖÜäöüß. ]+?)\s+v\.`)
	dateRe  = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
)

// fileNumberMarker is the en-dash separating the date from the file number.
const fileNumberMarker = "–"

// FieldError reports a required field that could not be extracted.
type FieldError struct {
	Field  string
	Source string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("extract %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("extract %s: %v in %q", e.Field, e.Err, e.Source)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// MissingFields lists the field names of every FieldError in err, including
// errors combined with errors.Join.
func MissingFields(err error) []string {
	var out []string
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if fe, ok := err.(*FieldError); ok {
			out = append(out, fe.Field)
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// MetaLine is the parsed form of a decision's metadata line, e.g.
// "Bayerisches Oberstes Landesgericht, Urt. v. 12.03.2020 – 4 Z BR 7/20".
type MetaLine struct {
	Court      string
	Style      string
	Date       string
	FileNumber string
}

// ParseMetaLine extracts court, decision style, date and file number from line.
// Every field is required; all misses are reported together.
func ParseMetaLine(line string) (MetaLine, error) {
	var (
		out  MetaLine
		errs []error
	)
	miss := func(field string) {
		errs = append(errs, &FieldError{Field: field, Source: line, Err: ErrPatternMiss})
	}

	if court, _, found := strings.Cut(line, ","); found && strings.TrimSpace(court) != "" {
		out.Court = strings.TrimSpace(court)
	} else {
		miss(FieldCourt)
	}

	if m := styleRe.FindStringSubmatch(line); m != nil && strings.Trim(m[1], " ,") != "" {
		out.Style = strings.Trim(m[1], " ,")
	} else {
		miss(FieldDecisionStyle)
	}

	if date := dateRe.FindString(line); date != "" {
		out.Date = date
	} else {
		miss(FieldDate)
	}

	if _, rest, found := strings.Cut(line, fileNumberMarker); found && strings.TrimSpace(rest) != "" {
		out.FileNumber = strings.TrimSpace(rest)
	} else {
		miss(FieldFileNumber)
	}

	if len(errs) > 0 {
		return MetaLine{}, errors.Join(errs...)
	}
	return out, nil
}
