package scrape

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrTableNotFound means the discovery heuristic matched no table on the
// page. Needs operator attention: the source likely changed its layout.
var ErrTableNotFound = errors.New("no qualifying data table found")

// ErrNoDateRows means a table was found but none of its rows carried a
// date-patterned first cell. Distinct from an empty result: an empty row
// set after placeholder filtering just means the market was closed.
var ErrNoDateRows = errors.New("no date-patterned rows in data table")

// dateRowRe matches first cells like "2 Jan 2026" or "15 Jan 2026".
var dateRowRe = regexp.MustCompile(`^\d{1,2} [A-Za-z]{3} \d{4}$`)

const dateRowLayout = "2 Jan 2006"

// FlowRow is one scraped day of signed per-issuer flows. Created fresh on
// every scrape and never cached; the source page is the only durable state.
type FlowRow struct {
	Date  time.Time
	Flows map[string]float64
	Total float64
}

// FindDataTable scans every table on the page and returns the first that
// looks like the flow table: more than minRows rows, and a header or early
// row mentioning at least one allow-listed ticker. The pages these come
// from are not APIs and reorder unrelated tables freely, hence the
// heuristic instead of a positional selector.
func FindDataTable(tables []Table, tickers []string, minRows int) (Table, error) {
	for _, t := range tables {
		if len(t.Rows) <= minRows {
			continue
		}
		probe := t.Rows
		if len(probe) > 3 {
			probe = probe[:3]
		}
		for _, row := range probe {
			for _, cell := range row {
				if matchesTicker(cell, tickers) {
					return t, nil
				}
			}
		}
	}
	return Table{}, ErrTableNotFound
}

func matchesTicker(cell string, tickers []string) bool {
	upper := strings.ToUpper(strings.TrimSpace(cell))
	for _, tk := range tickers {
		if strings.Contains(upper, strings.ToUpper(tk)) {
			return true
		}
	}
	return false
}

// ParseFlowRows converts a discovered table into typed flow rows, in page
// order. Rules, in order:
//   - a row is a data row only if its first cell matches "D Mon YYYY";
//   - a data row where every value cell is a placeholder dash is dropped —
//     that is a closed market day, not a zero-flow day;
//   - within a kept row, a dash or blank cell contributes exactly zero;
//   - a value in parentheses is negative: "(107.7)" → -107.7.
//
// Returns ErrNoDateRows if the table had no date-patterned rows at all.
func ParseFlowRows(t Table, tickers []string) ([]FlowRow, error) {
	header, start := findHeader(t, tickers)
	if header == nil {
		return nil, fmt.Errorf("%w: no header row with known tickers", ErrNoDateRows)
	}

	cols := map[int]string{} // value column index → ticker
	totalCol := -1
	for i, cell := range header {
		upper := strings.ToUpper(strings.TrimSpace(cell))
		if strings.Contains(upper, "TOTAL") {
			totalCol = i
			continue
		}
		for _, tk := range tickers {
			if strings.Contains(upper, strings.ToUpper(tk)) {
				cols[i] = strings.ToUpper(tk)
				break
			}
		}
	}

	var rows []FlowRow
	sawDateRow := false
	for _, row := range t.Rows[start:] {
		if len(row) < 2 || !dateRowRe.MatchString(strings.TrimSpace(row[0])) {
			continue
		}
		sawDateRow = true

		date, err := time.ParseInLocation(dateRowLayout, strings.TrimSpace(row[0]), time.UTC)
		if err != nil {
			continue
		}

		// Keep the row only if at least one value cell is a genuine number.
		hasValue := false
		for _, cell := range row[1:] {
			if _, ok := ParseSignedNumber(cell); ok {
				hasValue = true
				break
			}
		}
		if !hasValue {
			continue
		}

		fr := FlowRow{Date: date, Flows: make(map[string]float64, len(cols))}
		for i, tk := range cols {
			if i >= len(row) {
				continue
			}
			v, ok := ParseSignedNumber(row[i])
			if !ok {
				v = 0 // dash in an accepted row is zero contribution
			}
			fr.Flows[tk] = v
		}
		if totalCol >= 0 && totalCol < len(row) {
			if v, ok := ParseSignedNumber(row[totalCol]); ok {
				fr.Total = v
			}
		} else {
			for _, v := range fr.Flows {
				fr.Total += v
			}
		}
		rows = append(rows, fr)
	}

	if !sawDateRow {
		return nil, ErrNoDateRows
	}
	return rows, nil
}

// findHeader locates the first row mentioning a known ticker and returns it
// with the index of the following row.
func findHeader(t Table, tickers []string) ([]string, int) {
	for i, row := range t.Rows {
		for _, cell := range row {
			if matchesTicker(cell, tickers) {
				return row, i + 1
			}
		}
		// Headers live near the top; a date row means we ran past them.
		if len(row) > 0 && dateRowRe.MatchString(strings.TrimSpace(row[0])) {
			break
		}
	}
	return nil, 0
}

var placeholders = map[string]bool{"": true, "-": true, "–": true, "—": true}

// ParseSignedNumber parses a scraped numeric cell. Parentheses denote a
// negative value per the source's accounting convention. Returns ok=false
// for placeholder cells (blank or a lone dash) and unparseable text.
func ParseSignedNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if placeholders[s] {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// LatestRows returns the most recent n rows, newest first. Scraped rows
// arrive in page order (oldest to newest).
func LatestRows(rows []FlowRow, n int) []FlowRow {
	if len(rows) < n {
		n = len(rows)
	}
	out := make([]FlowRow, 0, n)
	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		out = append(out, rows[i])
	}
	return out
}
