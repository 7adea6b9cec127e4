package encoding

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WriteWCNF writes f in the classic weighted partial MaxSAT format:
// a "p wcnf nv nc top" header, then one clause per line prefixed by its
// weight (top for hard clauses) and terminated by 0.
func WriteWCNF(w io.Writer, f *Formula, comments ...string) error {
	bw := bufio.NewWriter(w)
	for _, c := range comments {
		for _, line := range strings.Split(c, "\n") {
			bw.WriteString("c ")
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
	}
	top := f.TopWeight()
	bw.WriteString("p wcnf ")
	bw.WriteString(strconv.Itoa(f.NumVars))
	bw.WriteByte(' ')
	bw.WriteString(strconv.Itoa(len(f.Hard) + len(f.Soft)))
	bw.WriteByte(' ')
	bw.WriteString(strconv.Itoa(top))
	bw.WriteByte('\n')

	buf := make([]byte, 0, 64)
	line := func(weight int, c Clause) {
		buf = strconv.AppendInt(buf[:0], int64(weight), 10)
		for _, l := range c {
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(l), 10)
		}
		buf = append(buf, " 0\n"...)
		bw.Write(buf)
	}
	for _, c := range f.Hard {
		line(top, c)
	}
	for _, c := range f.Soft {
		line(c.Weight, c.Lits)
	}
	return errors.Wrap(bw.Flush(), "write wcnf")
}

// ReadWCNF parses weighted partial MaxSAT text. It accepts the classic
// format ("p wcnf nv nc top", hard clauses weighted top), the old format
// without top (every clause soft), plain "p cnf" (every clause hard) and
// the header-less format with "h" marking hard clauses.
func ReadWCNF(r io.Reader) (*Formula, error) {
	const (
		modeUnset = iota
		modeCNF
		modeWCNF
		modeWCNFNoTop
	)
	f := &Formula{}
	mode := modeUnset
	top := 0
	declared := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<26)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "c") {
			continue
		}
		if fields[0] == "p" {
			if mode != modeUnset || len(fields) < 4 {
				return nil, errors.Errorf("line %d: bad problem line %q", lineNo, sc.Text())
			}
			nv, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: variable count", lineNo)
			}
			declared = nv
			switch {
			case fields[1] == "cnf":
				mode = modeCNF
			case fields[1] == "wcnf" && len(fields) >= 5:
				mode = modeWCNF
				if top, err = strconv.Atoi(fields[4]); err != nil {
					return nil, errors.Wrapf(err, "line %d: top weight", lineNo)
				}
			case fields[1] == "wcnf":
				mode = modeWCNFNoTop
			default:
				return nil, errors.Errorf("line %d: unsupported format %q", lineNo, fields[1])
			}
			continue
		}

		hard := false
		weight := 0
		body := fields
		switch {
		case fields[0] == "h":
			hard, body = true, fields[1:]
		case mode == modeCNF:
			hard = true
		default:
			w, err := strconv.Atoi(fields[0])
			if err != nil || w <= 0 {
				return nil, errors.Errorf("line %d: bad weight %q", lineNo, fields[0])
			}
			body = fields[1:]
			if mode == modeWCNF && w >= top {
				hard = true
			} else {
				weight = w
			}
		}

		lits, err := parseClause(body)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		for _, l := range lits {
			if v := abs(l); v > f.NumVars {
				f.NumVars = v
			}
		}
		if hard {
			f.Hard = append(f.Hard, lits)
		} else {
			f.Soft = append(f.Soft, SoftClause{Weight: weight, Lits: lits})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read wcnf")
	}
	if declared > f.NumVars {
		f.NumVars = declared
	}
	f.CoreVars = f.NumVars
	return f, nil
}

func parseClause(fields []string) (Clause, error) {
	if len(fields) == 0 || fields[len(fields)-1] != "0" {
		return nil, errors.New("clause not terminated by 0")
	}
	c := make(Clause, 0, len(fields)-1)
	for _, s := range fields[:len(fields)-1] {
		l, err := strconv.Atoi(s)
		if err != nil || l == 0 {
			return nil, errors.Errorf("bad literal %q", s)
		}
		c = append(c, l)
	}
	return c, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
