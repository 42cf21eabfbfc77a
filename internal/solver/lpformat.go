package solver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteLP renders the program in CPLEX LP format. Ranged rows are written as two rows suffixed
// _lo and _hi.
func WriteLP(w io.Writer, prog *Program) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* Problem: %s *\\\n\n", prog.Name)

	if prog.Direction == Minimize {
		bw.WriteString("Minimize\n")
	} else {
		bw.WriteString("Maximize\n")
	}
	objective := make([]Term, 0, len(prog.Variables))
	for _, v := range prog.Variables {
		if v.Objective != 0 {
			objective = append(objective, Term{Var: v.Name, Coef: v.Objective})
		}
	}
	fmt.Fprintf(bw, " obj:%s\n\n", lpExpression(objective))

	bw.WriteString("Subject To\n")
	for _, r := range prog.Rows {
		expr := lpExpression(r.Terms)
		switch r.Bound.Type {
		case BoundUpper:
			fmt.Fprintf(bw, " %s:%s <= %s\n", r.Name, expr, lpNumber(r.Bound.Upper))
		case BoundLower:
			fmt.Fprintf(bw, " %s:%s >= %s\n", r.Name, expr, lpNumber(r.Bound.Lower))
		case BoundFixed:
			fmt.Fprintf(bw, " %s:%s = %s\n", r.Name, expr, lpNumber(r.Bound.Lower))
		case BoundDouble:
			fmt.Fprintf(bw, " %s_lo:%s >= %s\n", r.Name, expr, lpNumber(r.Bound.Lower))
			fmt.Fprintf(bw, " %s_hi:%s <= %s\n", r.Name, expr, lpNumber(r.Bound.Upper))
		default:
			return fmt.Errorf("row %q: invalid bound type %q", r.Name, r.Bound.Type)
		}
	}

	var generals []string
	for _, v := range prog.Variables {
		if v.Integer {
			generals = append(generals, v.Name)
		}
	}
	if len(generals) > 0 {
		bw.WriteString("\nGenerals\n")
		for _, name := range generals {
			fmt.Fprintf(bw, " %s\n", name)
		}
	}

	bw.WriteString("\nEnd\n")
	return bw.Flush()
}

func lpExpression(terms []Term) string {
	if len(terms) == 0 {
		return " 0"
	}
	var b strings.Builder
	for _, t := range terms {
		if t.Coef < 0 {
			b.WriteString(" - ")
			b.WriteString(lpNumber(-t.Coef))
		} else {
			b.WriteString(" + ")
			b.WriteString(lpNumber(t.Coef))
		}
		b.WriteByte(' ')
		b.WriteString(t.Var)
	}
	return b.String()
}

func lpNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
