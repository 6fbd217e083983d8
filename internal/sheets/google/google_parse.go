package google

import (
	"fmt"
	"strconv"
	"strings"

	"ledger/internal/core"
)

// header is written to the first row of an empty sheet. Columns A..F.
var header = []interface{}{"ID", "Date", "User", "Title", "Amount", "Category"}

const lastColumn = "F"

// rowFromTransaction renders t in column order. The amount is written as
// its two-decimal text so the sheet never sees a float.
func rowFromTransaction(t core.Transaction) []interface{} {
	return []interface{}{
		strconv.FormatInt(t.ID, 10),
		t.CreatedAt.String(),
		t.UserID,
		t.Title,
		t.Amount.String(),
		t.Category,
	}
}

// transactionFromRow parses a row written by rowFromTransaction.
func transactionFromRow(row []interface{}) (core.Transaction, error) {
	cells := toStrings(row)
	id, ok := cellID(safeGet(cells, 0))
	if !ok {
		return core.Transaction{}, fmt.Errorf("row has no transaction id: %v", cells)
	}
	t := core.Transaction{
		ID:       id,
		UserID:   safeGet(cells, 2),
		Title:    safeGet(cells, 3),
		Category: safeGet(cells, 5),
	}
	if d := safeGet(cells, 1); d != "" {
		date, err := core.ParseDate(d)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("row %d date: %w", id, err)
		}
		t.CreatedAt = date
	}
	amount, err := core.ParseAmount(safeGet(cells, 4))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %d amount: %w", id, err)
	}
	t.Amount = amount
	return t, nil
}

// findRow returns the 0-based index of the row whose first cell is id, or -1.
func findRow(column [][]interface{}, id int64) int {
	for i, row := range column {
		if len(row) == 0 {
			continue
		}
		if v, ok := cellID(fmt.Sprint(row[0])); ok && v == id {
			return i
		}
	}
	return -1
}

// cellID accepts "12" as well as "12.0", which is how numeric cells come
// back when the sheet reformats them.
func cellID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		id, err := strconv.ParseInt(whole, 10, 64)
		return id, err == nil
	}
	return 0, false
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
