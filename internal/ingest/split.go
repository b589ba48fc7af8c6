// Package ingest learns uploaded text documents sentence by sentence.
package ingest

import "unicode/utf8"

func isTerminal(b byte) bool {
	return b == '.' || b == '?' || b == '!'
}

func isClosing(r rune) bool {
	switch r {
	case ']', ')', '\'', '"', '`', '’', '”':
		return true
	}
	return false
}

// SplitSentences is a bufio.SplitFunc yielding sentence-like units: a run of
// text, one or more of . ? ! and any closing quotes or brackets. Terminal
// punctuation with no text before it is skipped, and a trailing fragment with
// no terminal punctuation is dropped at EOF.
func SplitSentences(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && isTerminal(data[start]) {
		start++
	}

	i := start
	for i < len(data) && !isTerminal(data[i]) {
		i++
	}
	if i == len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	j := i
	for j < len(data) && isTerminal(data[j]) {
		j++
	}
	for j < len(data) {
		if !utf8.FullRune(data[j:]) {
			if atEOF {
				break
			}
			return start, nil, nil
		}
		r, size := utf8.DecodeRune(data[j:])
		if !isClosing(r) {
			break
		}
		j += size
	}
	if j == len(data) && !atEOF {
		// More punctuation or closing quotes may follow in the next read.
		return start, nil, nil
	}
	return j, data[start:j], nil
}
