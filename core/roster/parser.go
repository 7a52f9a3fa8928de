package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/trezcool/academia/core"
)

// canonical column names
const (
	ColID         = "id"
	ColName       = "name"
	ColEmail      = "email"
	ColDepartment = "department"
)

var headerAliases = map[string]string{
	"id":            ColID,
	"external_id":   ColID,
	"student_id":    ColID,
	"faculty_id":    ColID,
	"name":          ColName,
	"full name":     ColName,
	"full_name":     ColName,
	"email":         ColEmail,
	"e-mail":        ColEmail,
	"email address": ColEmail,
	"department":    ColDepartment,
	"dept":          ColDepartment,
}

// RosterRow is one data line of an uploaded roster.
type RosterRow struct {
	Line       int    `json:"line"` // 1-based line number in the file
	ExternalID string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
	BatchName  string `json:"batch_name,omitempty"`
}

// MissingColumnError is returned when a required header is absent. Nothing of the file is processed.
type MissingColumnError struct {
	Column string
}

func (err *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", err.Column)
}

// ParseError is returned when the file is not readable as CSV.
type ParseError struct {
	Line int
	Err  error
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", err.Line, err.Err)
}

func (err *ParseError) Unwrap() error { return err.Err }

func cleanField(s string) string {
	return norm.NFC.String(core.CleanString(s))
}

// headerIndex maps canonical column names to their position. The first occurrence wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		col, ok := headerAliases[strings.ToLower(cleanField(h))]
		if !ok {
			continue
		}
		if _, seen := idx[col]; !seen {
			idx[col] = i
		}
	}
	return idx
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Parse reads a roster: a header line followed by one line per person.
// Only the email column is required; rows keep the file order and blank lines are skipped.
// Emails are returned in their canonical (trimmed, lower-cased) form.
func Parse(text string, batchName string) ([]RosterRow, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1 // rows may be shorter or longer than the header
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, &MissingColumnError{Column: ColEmail}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}
	idx := headerIndex(header)
	if _, ok := idx[ColEmail]; !ok {
		return nil, &MissingColumnError{Column: ColEmail}
	}

	field := func(record []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return cleanField(record[i])
	}

	batchName = cleanField(batchName)
	rows := make([]RosterRow, 0)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var line int
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				line = csvErr.StartLine
			}
			return nil, &ParseError{Line: line, Err: err}
		}
		if isBlank(record) {
			continue
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, RosterRow{
			Line:       line,
			ExternalID: field(record, ColID),
			Name:       field(record, ColName),
			Email:      core.CleanEmail(field(record, ColEmail)),
			Department: field(record, ColDepartment),
			BatchName:  batchName,
		})
	}
	return rows, nil
}

// ParseEmails reads the email column of a roster and returns its distinct, non-empty values in file order.
func ParseEmails(text string) ([]string, error) {
	rows, err := Parse(text, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rows))
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Email == "" {
			continue
		}
		if _, ok := seen[row.Email]; ok {
			continue
		}
		seen[row.Email] = struct{}{}
		emails = append(emails, row.Email)
	}
	return emails, nil
}
