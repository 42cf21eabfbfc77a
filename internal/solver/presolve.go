package solver

import (
	"sort"
	"strconv"
	"strings"
)

// Presolve drops rows that repeat an earlier row term-for-term with the same bound. It returns
// the kept rows and how many were removed. The input slice is not modified.
func Presolve(rows []Row) ([]Row, int) {
	seen := make(map[string]bool, len(rows))
	kept := make([]Row, 0, len(rows))

	for _, r := range rows {
		key := rowKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}

	return kept, len(rows) - len(kept)
}

func rowKey(r Row) string {
	terms := make([]Term, len(r.Terms))
	copy(terms, r.Terms)
	sort.Slice(terms, func(i, j int) bool { return terms[i].Var < terms[j].Var })

	var b strings.Builder
	b.WriteString(string(r.Bound.Type))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(r.Bound.Lower, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(r.Bound.Upper, 'g', -1, 64))
	for _, t := range terms {
		b.WriteByte('|')
		b.WriteString(t.Var)
		b.WriteByte('*')
		b.WriteString(strconv.FormatFloat(t.Coef, 'g', -1, 64))
	}
	return b.String()
}
