package pdp8

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// tapeImageLine matches one labelled-block line of a paper-tape text
// image: a two-letter tag, a three-octal-digit block label, a colon, and
// the block's payload.
var tapeImageLine = regexp.MustCompile(`^([A-Z]{2})([0-7]{3}):\s*(.*)$`)

// ParseTapeImage parses a paper-tape text image into labelled blocks ready
// for PaperTape.Load. Lines sharing a label append to the same block, in
// file order; payload encoding is auto-detected per line from its content
// (bit-stream, ASCII-octal, or two-per-word SIXBIT-octal) rather than from
// the line's tag, which the parser does not use.
func ParseTapeImage(text string) ([]PaperTapeBlock, error) {
	order := make([]int, 0)
	byLabel := make(map[int]int) // label -> index into blocks

	var blocks []PaperTapeBlock

	for lineNo, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := tapeImageLine.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Wrapf(ErrImageParse, "line %d: does not match the tape image grammar", lineNo+1)
		}

		label, err := strconv.ParseInt(m[2], 8, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrImageParse, "line %d: bad label %q", lineNo+1, m[2])
		}

		words, err := decodeTapePayload(m[3])
		if err != nil {
			return nil, errors.Wrapf(ErrImageParse, "line %d: %s", lineNo+1, err)
		}

		idx, ok := byLabel[int(label)]
		if !ok {
			idx = len(blocks)
			byLabel[int(label)] = idx
			order = append(order, idx)
			blocks = append(blocks, PaperTapeBlock{Label: int(label)})
		}
		blocks[idx].Words = append(blocks[idx].Words, words...)
	}

	return blocks, nil
}

// decodeTapePayload auto-detects and decodes one payload line.
func decodeTapePayload(payload string) ([]int, error) {
	compact := strings.Join(strings.Fields(payload), "")
	if compact == "" {
		return nil, nil
	}

	if isBitStream(compact) {
		return decodeBitStream(compact)
	}

	tokens := strings.Fields(payload)
	if allMatch(tokens, asciiOctalToken) {
		return decodeASCIIOctal(tokens)
	}
	if allMatch(tokens, sixbitOctalToken) {
		return decodeSixbitOctal(tokens)
	}

	return nil, errors.New("payload matches no known encoding")
}

func isBitStream(compact string) bool {
	if len(compact)%12 != 0 {
		return false
	}
	for _, r := range compact {
		if r != '0' && r != '1' {
			return false
		}
	}
	return true
}

func decodeBitStream(compact string) ([]int, error) {
	words := make([]int, 0, len(compact)/12)
	for i := 0; i < len(compact); i += 12 {
		word := 0
		for _, r := range compact[i : i+12] {
			word = (word << 1) | int(r-'0')
		}
		words = append(words, word)
	}
	return words, nil
}

func asciiOctalToken(tok string) bool {
	if len(tok) < 1 || len(tok) > 4 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '7' {
			return false
		}
	}
	return len(tok) >= 3 // 1-2 digit tokens are ambiguous with sixbit pairs
}

func sixbitOctalToken(tok string) bool {
	if len(tok) != 2 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '7' {
			return false
		}
	}
	return true
}

func allMatch(tokens []string, pred func(string) bool) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if !pred(t) {
			return false
		}
	}
	return true
}

func decodeASCIIOctal(tokens []string) ([]int, error) {
	words := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseInt(tok, 8, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "bad ASCII-octal token %q", tok)
		}
		words = append(words, int(v)&WordMask)
	}
	return words, nil
}

func decodeSixbitOctal(tokens []string) ([]int, error) {
	if len(tokens)%2 != 0 {
		return nil, errors.New("SIXBIT-octal payload has an odd number of characters")
	}
	words := make([]int, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		hi, err := strconv.ParseInt(tokens[i], 8, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "bad SIXBIT-octal token %q", tokens[i])
		}
		lo, err := strconv.ParseInt(tokens[i+1], 8, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "bad SIXBIT-octal token %q", tokens[i+1])
		}
		word := (int(hi) << 6) | int(lo)
		words = append(words, word&WordMask)
	}
	return words, nil
}
