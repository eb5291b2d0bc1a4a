// Package csvcodec serializes a ledger to the CSV export format.
//
// The format is deliberately minimal and is not RFC 4180: there is no quoting.
// A fixed header row is followed by one row per expense:
//
//	Amount,Date,Description,Where,What
//	7.00,2024-01-01 00:00:00,Coffee,NYC,Drink
//
// Amounts carry exactly two fractional digits with '.' as separator. Dates use
// the layout yyyy-MM-dd HH:mm:ss in the encoder's fixed location. In free-text
// fields every comma is replaced with a single space, as are CR and LF so that
// a row always occupies one line. This substitution is lossy: text that
// contained commas does not decode back to its original value.
//
// Output ends with a single newline after the last row.
package csvcodec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ducats/internal/apperrors"
	"github.com/mmynk/ducats/internal/models"
)

const (
	// Header is the first line of every export.
	Header = "Amount,Date,Description,Where,What"

	// DateLayout formats dates as yyyy-MM-dd HH:mm:ss.
	DateLayout = "2006-01-02 15:04:05"

	// MimeType is attached to mailed exports.
	MimeType = "text/csv"

	// Extension is appended to export file names.
	Extension = ".csv"

	columns = 5
)

var textReplacer = strings.NewReplacer(",", " ", "\r", " ", "\n", " ")

// Encoder writes ledgers in a fixed location so output does not depend on the
// host's locale or time zone.
type Encoder struct {
	loc *time.Location
}

// NewEncoder returns an Encoder formatting dates in loc. A nil loc means UTC.
func NewEncoder(loc *time.Location) *Encoder {
	if loc == nil {
		loc = time.UTC
	}
	return &Encoder{loc: loc}
}

// Encode writes expenses to w in the given order. Failures are reported as
// apperrors.ErrEncode.
func (e *Encoder) Encode(w io.Writer, expenses []models.Expense) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(Header)
	bw.WriteByte('\n')

	for i := range expenses {
		row, err := e.row(&expenses[i])
		if err != nil {
			return err
		}
		bw.WriteString(row)
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return apperrors.Wrap(apperrors.CodeEncode, "failed to write csv", err)
	}
	return nil
}

// Marshal encodes expenses into a new byte slice.
func (e *Encoder) Marshal(expenses []models.Expense) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, expenses); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Encoder) row(x *models.Expense) (string, error) {
	if x.Date.IsZero() {
		return "", apperrors.Wrap(apperrors.CodeEncode, "failed to format date",
			fmt.Errorf("expense %s has no date", x.ID))
	}
	return strings.Join([]string{
		x.Amount.StringFixed(2),
		x.Date.In(e.loc).Format(DateLayout),
		Sanitize(x.Description),
		Sanitize(x.WhereMade),
		Sanitize(x.WhatPurchased),
	}, ","), nil
}

// Sanitize applies the free-text substitution used in rows.
func Sanitize(s string) string {
	return textReplacer.Replace(s)
}

// Row is one decoded data row.
type Row struct {
	Amount        decimal.Decimal
	Date          time.Time
	Description   string
	WhereMade     string
	WhatPurchased string
}

// Decode reads an export produced by Encoder back into rows, interpreting
// dates in loc (nil means UTC). It exists to verify exports.
func Decode(r io.Reader, loc *time.Location) ([]Row, error) {
	if loc == nil {
		loc = time.UTC
	}

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, fmt.Errorf("missing header")
	}
	if scanner.Text() != Header {
		return nil, fmt.Errorf("unexpected header %q", scanner.Text())
	}

	rows := []Row{}
	for line := 2; scanner.Scan(); line++ {
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) != columns {
			return nil, fmt.Errorf("line %d: got %d fields, want %d", line, len(fields), columns)
		}
		amount, err := decimal.NewFromString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: amount: %w", line, err)
		}
		date, err := time.ParseInLocation(DateLayout, fields[1], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: date: %w", line, err)
		}
		rows = append(rows, Row{
			Amount:        amount,
			Date:          date,
			Description:   fields[2],
			WhereMade:     fields[3],
			WhatPurchased: fields[4],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, nil
}

// FileName derives the export file name from a project name: every character
// outside [A-Za-z0-9_-] becomes '_' and ".csv" is appended. An empty name
// yields "Untitled.csv".
func FileName(projectName string) string {
	if projectName == "" {
		return "Untitled" + Extension
	}
	var b strings.Builder
	for _, r := range projectName {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + Extension
}
