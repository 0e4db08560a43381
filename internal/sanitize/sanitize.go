// Package sanitize strips terminal query escape sequences from scrollback
// before it is replayed to a newly attached client. Replaying a query like
// CSI 6n would otherwise solicit a response from the new terminal that
// surfaces as stray input to the shell.
package sanitize

const (
	esc = 0x1b
	csi = '['
)

// ScrollbackForReplay removes Device Status Report (CSI ... n) and Device
// Attributes (CSI ... c, including '>' and '?' prefixed variants) queries
// from data. All other bytes, including non-query CSI sequences, pass
// through unchanged. A CSI sequence truncated at the end of data is kept
// verbatim, since there's no final byte to classify it by.
func ScrollbackForReplay(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if data[i] != esc || i+1 >= len(data) || data[i+1] != csi {
			out = append(out, data[i])
			i++
			continue
		}

		j := i + 2
		for j < len(data) && !isFinalByte(data[j]) {
			j++
		}
		if j >= len(data) {
			// Truncated CSI: no final byte observed, keep as-is.
			out = append(out, data[i:]...)
			break
		}

		final := data[j]
		if !isQuery(final) {
			out = append(out, data[i:j+1]...)
		}
		i = j + 1
	}
	return out
}

func isFinalByte(b byte) bool {
	return b >= 0x40 && b <= 0x7e
}

func isQuery(final byte) bool {
	return final == 'n' || final == 'c'
}
