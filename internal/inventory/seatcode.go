package inventory

import (
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-reservation/internal/bizerr"
)

// SplitSeatCode is the exported form of splitSeatCode, used by callers
// outside this package (the purchase coordinator's pricer) that need
// to resolve a seat code into its row/number parts.
func SplitSeatCode(code string) (row string, number uint32, err error) {
	return splitSeatCode(code)
}

// splitSeatCode parses a canonical seat code such as "C12" into its row
// letters and seat number. Row letters are matched greedily so
// multi-letter rows (e.g. "AA1") decode correctly once a hall grows
// past 26 rows.
func splitSeatCode(code string) (row string, number uint32, err error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	i := 0
	for i < len(code) && code[i] >= 'A' && code[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(code) {
		return "", 0, bizerr.InvalidInput("seat code \"" + code + "\" must be letters followed by a number")
	}
	n, convErr := strconv.ParseUint(code[i:], 10, 32)
	if convErr != nil || n == 0 {
		return "", 0, bizerr.InvalidInput("seat code \"" + code + "\" has an invalid seat number")
	}
	return code[:i], uint32(n), nil
}

// rowIndex converts a row letter sequence to a zero-based index using
// spreadsheet-column semantics: A=0, B=1, ..., Z=25, AA=26, AB=27, ...
func rowIndex(row string) uint32 {
	var idx uint32
	for _, c := range row {
		idx = idx*26 + uint32(c-'A'+1)
	}
	return idx - 1
}

// bitOffset computes the bitmap bit position for a seat within a
// function, using the function's own snapshotted seats-per-row as the
// stride. The stride MUST come from the function, never a hardcoded
// constant: two functions in halls with different widths must not
// collide or misalign in the same codebase.
func bitOffset(row string, number uint32, seatsPerRow uint32) int64 {
	return int64(rowIndex(row))*int64(seatsPerRow) + int64(number-1)
}
