package opt

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Labels selects how columns and rows are named when writing an LP file.
type Labels int

const (
	// IndexLabels names columns x<i> and rows c<i>. Solvers read these back
	// unambiguously.
	IndexLabels Labels = iota
	// SymbolicLabels uses the problem's own names, reduced to characters
	// every LP reader accepts. Meant for inspection.
	SymbolicLabels
)

const termsPerLine = 8

// ColumnLabel is the IndexLabels name of column v.
func ColumnLabel(v Var) string {
	return "x" + strconv.Itoa(int(v))
}

// WriteLP writes p in CPLEX LP format.
func WriteLP(w io.Writer, p *Problem, labels Labels) error {
	cols := columnLabels(p, labels)
	rows := rowLabels(p, labels)

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `\ cgc_plan linear program`)
	fmt.Fprintf(bw, "\\ %d variables, %d constraints\n", p.NumVariables(), p.NumConstraints())

	fmt.Fprintln(bw, "Minimize")
	obj := make([]Term, 0, len(p.vars))
	for i, v := range p.vars {
		if v.Cost != 0 {
			obj = append(obj, Term{Var(i), v.Cost})
		}
	}
	bw.WriteString(" obj:")
	if len(obj) == 0 && len(p.vars) > 0 {
		obj = append(obj, Term{0, 0})
	}
	writeTerms(bw, obj, cols)
	bw.WriteString("\n")

	fmt.Fprintln(bw, "Subject To")
	for i, c := range p.cons {
		terms := nonZero(c.Terms)
		if len(terms) == 0 {
			fmt.Fprintf(bw, "\\ %s has no terms\n", rows[i])
			continue
		}
		fmt.Fprintf(bw, " %s:", rows[i])
		writeTerms(bw, terms, cols)
		fmt.Fprintf(bw, " %s %s\n", c.Rel, formatFloat(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	for i, v := range p.vars {
		name := cols[i]
		switch {
		case v.Lower == v.Upper:
			fmt.Fprintf(bw, " %s = %s\n", name, formatFloat(v.Lower))
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s free\n", name)
		case math.IsInf(v.Upper, 1):
			if v.Lower != 0 {
				fmt.Fprintf(bw, " %s >= %s\n", name, formatFloat(v.Lower))
			}
		case math.IsInf(v.Lower, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", name, formatFloat(v.Upper))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(v.Lower), name, formatFloat(v.Upper))
		}
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeTerms(bw *bufio.Writer, terms []Term, cols []string) {
	for i, t := range terms {
		if i > 0 && i%termsPerLine == 0 {
			bw.WriteString("\n  ")
		}
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		fmt.Fprintf(bw, " %s %s %s", sign, formatFloat(coef), cols[t.Var])
	}
}

func nonZero(terms []Term) []Term {
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func columnLabels(p *Problem, labels Labels) []string {
	names := make([]string, len(p.vars))
	for i, v := range p.vars {
		names[i] = v.Name
	}
	return makeLabels(names, "x", labels)
}

func rowLabels(p *Problem, labels Labels) []string {
	names := make([]string, len(p.cons))
	for i, c := range p.cons {
		names[i] = c.Name
	}
	return makeLabels(names, "c", labels)
}

func makeLabels(names []string, prefix string, labels Labels) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		label := prefix + strconv.Itoa(i)
		if labels == SymbolicLabels && name != "" {
			label = sanitize(name)
			if seen[label] {
				label = label + "_" + strconv.Itoa(i)
			}
		}
		seen[label] = true
		out[i] = label
	}
	return out
}

// sanitize maps a name onto [A-Za-z0-9_], never starting with a digit.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.TrimRight(b.String(), "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "n_" + s
	}
	return s
}
