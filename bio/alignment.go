package bio

import (
	"errors"
	"fmt"
)

// Alphabet is the character set of an alignment.
type Alphabet int

const (
	// DNA is the nucleotide alphabet, states are ordered TCAG.
	DNA Alphabet = iota
	// Protein is the amino acid alphabet, states are ordered
	// ARNDCQEGHILKMFPSTWYV.
	Protein
)

const (
	dnaStates     = "TCAG"
	proteinStates = "ARNDCQEGHILKMFPSTWYV"
)

// ErrAlignment is returned for malformed alignments.
var ErrAlignment = errors.New("malformed alignment")

// dnaCodes maps IUPAC nucleotide codes to the compatible states.
var dnaCodes = map[byte]string{
	'A': "A", 'C': "C", 'G': "G", 'T': "T", 'U': "T",
	'R': "AG", 'Y': "CT", 'S': "CG", 'W': "AT", 'K': "GT", 'M': "AC",
	'B': "CGT", 'D': "AGT", 'H': "ACT", 'V': "ACG",
	'N': dnaStates, 'X': dnaStates, '?': dnaStates,
}

// proteinCodes maps amino acid ambiguity codes to the compatible
// states. Unambiguous letters are added in init.
var proteinCodes = map[byte]string{
	'B': "ND", 'Z': "QE", 'J': "IL",
	'X': proteinStates, '?': proteinStates, '*': proteinStates,
	'U': proteinStates, 'O': proteinStates,
}

func init() {
	for i := 0; i < len(proteinStates); i++ {
		proteinCodes[proteinStates[i]] = proteinStates[i : i+1]
	}
}

// String returns the alphabet name.
func (a Alphabet) String() string {
	switch a {
	case DNA:
		return "DNA"
	case Protein:
		return "protein"
	}
	return fmt.Sprintf("Alphabet(%d)", int(a))
}

// States returns the state characters in the canonical order.
func (a Alphabet) States() string {
	if a == Protein {
		return proteinStates
	}
	return dnaStates
}

// Size returns the number of states.
func (a Alphabet) Size() int {
	return len(a.States())
}

func (a Alphabet) codes() map[byte]string {
	if a == Protein {
		return proteinCodes
	}
	return dnaCodes
}

// IsGap returns true for gap characters.
func IsGap(c byte) bool {
	return c == '-' || c == '.'
}

// Encode fills dst with the indicator vector of the states compatible
// with the character c. For a gap all states are set and gap is true.
func (a Alphabet) Encode(c byte, dst []float64) (vec []float64, gap bool, err error) {
	states := a.States()
	if dst == nil {
		dst = make([]float64, len(states))
	}
	if IsGap(c) {
		for i := range dst {
			dst[i] = 1
		}
		return dst, true, nil
	}
	code, ok := a.codes()[c]
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown %s character %q", ErrAlignment, a, c)
	}
	for i := range dst {
		dst[i] = 0
	}
	for j := 0; j < len(code); j++ {
		for i := 0; i < len(states); i++ {
			if states[i] == code[j] {
				dst[i] = 1
			}
		}
	}
	return dst, false, nil
}

// State returns the index of an unambiguous character or -1.
func (a Alphabet) State(c byte) int {
	if c == 'U' && a == DNA {
		c = 'T'
	}
	states := a.States()
	for i := 0; i < len(states); i++ {
		if states[i] == c {
			return i
		}
	}
	return -1
}

// DetectAlphabet guesses the alphabet of the sequences. Sequences are
// treated as nucleotide when at least 90% of non-gap, non-N
// characters are ACGTU.
func DetectAlphabet(seqs Sequences) Alphabet {
	var nuc, total int
	for _, seq := range seqs {
		for i := 0; i < len(seq.Sequence); i++ {
			c := seq.Sequence[i]
			if IsGap(c) || c == 'N' || c == 'X' || c == '?' {
				continue
			}
			total++
			switch c {
			case 'A', 'C', 'G', 'T', 'U':
				nuc++
			}
		}
	}
	if total == 0 || float64(nuc) >= 0.9*float64(total) {
		return DNA
	}
	return Protein
}

// Alignment is an ordered immutable set of aligned sequences with the
// alphabet they are written in.
type Alignment struct {
	Seqs     Sequences
	Alphabet Alphabet
}

// NewAlignment checks sequences and creates an alignment with the
// detected alphabet.
func NewAlignment(seqs Sequences) (*Alignment, error) {
	return NewAlignmentAs(seqs, DetectAlphabet(seqs))
}

// NewAlignmentAs creates an alignment with the given alphabet.
func NewAlignmentAs(seqs Sequences, a Alphabet) (*Alignment, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: no sequences", ErrAlignment)
	}
	length := len(seqs[0].Sequence)
	if length == 0 {
		return nil, fmt.Errorf("%w: zero length alignment", ErrAlignment)
	}
	names := make(map[string]bool, len(seqs))
	for _, seq := range seqs {
		if seq.Name == "" {
			return nil, fmt.Errorf("%w: empty sequence name", ErrAlignment)
		}
		if names[seq.Name] {
			return nil, fmt.Errorf("%w: duplicate sequence name %s", ErrAlignment, seq.Name)
		}
		names[seq.Name] = true
		if len(seq.Sequence) != length {
			return nil, fmt.Errorf("%w: sequence %s has length %d, expected %d",
				ErrAlignment, seq.Name, len(seq.Sequence), length)
		}
		codes := a.codes()
		for i := 0; i < length; i++ {
			c := seq.Sequence[i]
			if _, ok := codes[c]; !ok && !IsGap(c) {
				return nil, fmt.Errorf("%w: sequence %s, position %d: unknown %s character %q",
					ErrAlignment, seq.Name, i+1, a, c)
			}
		}
	}
	cp := make(Sequences, len(seqs))
	copy(cp, seqs)
	return &Alignment{Seqs: cp, Alphabet: a}, nil
}

// Length returns the number of columns.
func (ali *Alignment) Length() int {
	return len(ali.Seqs[0].Sequence)
}

// NSeq returns the number of sequences.
func (ali *Alignment) NSeq() int {
	return len(ali.Seqs)
}

// Names returns sequence names in the alignment order.
func (ali *Alignment) Names() []string {
	names := make([]string, len(ali.Seqs))
	for i, seq := range ali.Seqs {
		names[i] = seq.Name
	}
	return names
}

// HasGaps returns true if any sequence contains a gap.
func (ali *Alignment) HasGaps() bool {
	for _, seq := range ali.Seqs {
		for i := 0; i < len(seq.Sequence); i++ {
			if IsGap(seq.Sequence[i]) {
				return true
			}
		}
	}
	return false
}

// Frequencies returns empirical state frequencies computed from
// unambiguous characters. Equal frequencies are returned if there are
// none.
func (ali *Alignment) Frequencies() []float64 {
	n := ali.Alphabet.Size()
	f := make([]float64, n)
	total := 0.0
	for _, seq := range ali.Seqs {
		for i := 0; i < len(seq.Sequence); i++ {
			if s := ali.Alphabet.State(seq.Sequence[i]); s >= 0 {
				f[s]++
				total++
			}
		}
	}
	for i := range f {
		if total == 0 {
			f[i] = 1 / float64(n)
		} else {
			f[i] /= total
		}
	}
	return f
}
