package weather

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Layouts without an offset are read in
// the parser's configured location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Parser turns semicolon-delimited "<timestamp>;<value>" lines into readings.
type Parser struct {
	loc *time.Location
}

// NewParser creates a Parser. A nil location means UTC.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{loc: loc}
}

// Parse reads every line of r in order. Any malformed line fails the whole
// parse with a *ParseError naming source and line number. Trailing blank lines
// are ignored; a blank line followed by data is malformed.
// The returned slice is never nil, so an empty file still counts as present.
func (p *Parser) Parse(r io.Reader, source string) ([]Reading, error) {
	readings := make([]Reading, 0, 64)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	blank := 0 // first blank line not yet followed by data
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if blank == 0 {
				blank = lineNo
			}
			continue
		}
		if blank != 0 {
			return nil, &ParseError{Source: source, Line: blank, Err: errors.New("empty line")}
		}

		reading, err := p.parseLine(line)
		if err != nil {
			return nil, &ParseError{Source: source, Line: lineNo, Err: err}
		}
		readings = append(readings, reading)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Source: source, Line: lineNo + 1, Err: err}
	}

	return readings, nil
}

func (p *Parser) parseLine(line string) (Reading, error) {
	fields := strings.Split(line, ";")
	if len(fields) != 2 {
		return Reading{}, fmt.Errorf("expected 2 fields, got %d", len(fields))
	}

	ts, err := p.parseTime(strings.TrimSpace(fields[0]))
	if err != nil {
		return Reading{}, err
	}

	raw := strings.ReplaceAll(strings.TrimSpace(fields[1]), ",", ".")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("invalid value %q", fields[1])
	}

	return Reading{Time: ts, Value: value}, nil
}

func (p *Parser) parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
