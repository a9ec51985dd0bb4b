package internal

import (
	"bytes"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	markerOurs   = "<<<<<<< "
	markerSep    = "======="
	markerTheirs = ">>>>>>> "
)

// hunk replaces base[start:end] with lines.
type hunk struct {
	start, end int
	lines      []string
}

// textMerge is the result of a line-level three-way merge.
type textMerge struct {
	content   []byte
	conflicts int
}

// splitLines splits s keeping line terminators. A trailing fragment without a
// newline is kept as its own line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func diffHunks(base, other []string) []hunk {
	m := difflib.NewMatcherWithJunk(base, other, false, nil)
	var hunks []hunk
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		hunks = append(hunks, hunk{
			start: op.I1,
			end:   op.I2,
			lines: other[op.J1:op.J2],
		})
	}
	return hunks
}

// applyHunks renders base[from:to] with the given hunks (all inside the range)
// applied.
func applyHunks(base []string, from, to int, hunks []hunk) []string {
	var out []string
	cur := from
	for _, h := range hunks {
		out = append(out, base[cur:h.start]...)
		out = append(out, h.lines...)
		cur = h.end
	}
	return append(out, base[cur:to]...)
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mergeText performs a diff3 style merge of ours and theirs against base.
// Changes from both sides that overlap or touch the same base region are
// conflicts unless both sides made the identical change.
func mergeText(base, ours, theirs []byte, oursLabel, theirsLabel string) textMerge {
	b := splitLines(string(base))
	oh := diffHunks(b, splitLines(string(ours)))
	th := diffHunks(b, splitLines(string(theirs)))

	var out []string
	conflicts := 0
	pos := 0
	i, j := 0, 0
	for i < len(oh) || j < len(th) {
		// seed the group with the hunk starting first
		var start, end int
		var og, tg []hunk
		if j >= len(th) || (i < len(oh) && oh[i].start <= th[j].start) {
			start, end = oh[i].start, oh[i].end
			og = append(og, oh[i])
			i++
		} else {
			start, end = th[j].start, th[j].end
			tg = append(tg, th[j])
			j++
		}

		for {
			grown := false
			if i < len(oh) && oh[i].start <= end && (len(tg) > 0 || oh[i].start < end) {
				og = append(og, oh[i])
				end = max(end, oh[i].end)
				i++
				grown = true
			}
			if j < len(th) && th[j].start <= end && (len(og) > 0 || th[j].start < end) {
				tg = append(tg, th[j])
				end = max(end, th[j].end)
				j++
				grown = true
			}
			if !grown {
				break
			}
		}

		out = append(out, b[pos:start]...)
		switch {
		case len(tg) == 0:
			out = append(out, applyHunks(b, start, end, og)...)
		case len(og) == 0:
			out = append(out, applyHunks(b, start, end, tg)...)
		default:
			mine := applyHunks(b, start, end, og)
			yours := applyHunks(b, start, end, tg)
			if equalLines(mine, yours) {
				out = append(out, mine...)
				break
			}
			conflicts++
			out = append(out, markerOurs+oursLabel+"\n")
			out = appendTerminated(out, mine)
			out = append(out, markerSep+"\n")
			out = appendTerminated(out, yours)
			out = append(out, markerTheirs+theirsLabel+"\n")
		}
		pos = end
	}
	out = append(out, b[pos:]...)

	var buf bytes.Buffer
	for _, l := range out {
		buf.WriteString(l)
	}
	return textMerge{content: buf.Bytes(), conflicts: conflicts}
}

// appendTerminated appends lines making sure the last one ends with a newline
// so a following conflict marker starts on its own line.
func appendTerminated(out, lines []string) []string {
	for k, l := range lines {
		if k == len(lines)-1 && !strings.HasSuffix(l, "\n") {
			l += "\n"
		}
		out = append(out, l)
	}
	return out
}

// isBinary uses the same heuristic as git: a NUL byte in the first 8000 bytes.
func isBinary(data []byte) bool {
	n := min(len(data), 8000)
	return bytes.IndexByte(data[:n], 0) >= 0
}
