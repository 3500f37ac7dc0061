// Package bio provides sequence input and alignment handling.
package bio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// lineWidth is the sequence line width of FASTA output.
const lineWidth = 80

// Sequence is a named nucleotide or protein sequence.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences, e.g. an alignment.
type Sequences []Sequence

// ParseFasta parses FASTA sequences from a reader. Sequence names
// are the header line up to the first whitespace. Residues are
// converted to upper case; spaces inside sequence lines are ignored.
func ParseFasta(rd io.Reader) (Sequences, error) {
	var seqs Sequences
	var cur strings.Builder
	flush := func() {
		if len(seqs) > 0 {
			seqs[len(seqs)-1].Sequence = cur.String()
			cur.Reset()
		}
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line[0] == '>':
			flush()
			f := strings.Fields(line[1:])
			if len(f) == 0 {
				return nil, fmt.Errorf("%w: empty sequence name at line %d", ErrAlignment, lineNo)
			}
			seqs = append(seqs, Sequence{Name: f[0]})
		case len(seqs) == 0:
			return nil, fmt.Errorf("%w: sequence without a header at line %d", ErrAlignment, lineNo)
		default:
			for _, c := range []byte(line) {
				if c != ' ' && c != '\t' {
					cur.WriteByte(upper(c))
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return seqs, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// String returns a sequence in FASTA format.
func (seq Sequence) String() string {
	var b strings.Builder
	seq.write(&b)
	return strings.TrimSuffix(b.String(), "\n")
}

func (seq Sequence) write(b *strings.Builder) {
	b.WriteString(">" + seq.Name + "\n")
	s := seq.Sequence
	for i := 0; i < len(s); i += lineWidth {
		b.WriteString(s[i:min(i+lineWidth, len(s))])
		b.WriteByte('\n')
	}
}

// String returns sequences in FASTA format.
func (seqs Sequences) String() string {
	var b strings.Builder
	for _, seq := range seqs {
		seq.write(&b)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
