package extractor

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"strings"
)

var (
	// (text) Tj, (text) ' and [(a) -20 (b)] TJ
	literalShowRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*(?:Tj|')`)
	arrayShowRe   = regexp.MustCompile(`\[((?:\\.|[^\]])*)\]\s*TJ`)
	literalRe     = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
	// a text positioning operator starts a new line
	lineBreakRe = regexp.MustCompile(`(?:-?[\d.]+\s+-?[\d.]+\s+T[dD])|T\*`)
)

// rawPDFLines scans content streams directly for shown text. It is used when
// the PDF library cannot open a document or finds no text in it, which
// happens with some carrier-generated labels. Fonts with custom encodings are
// not decoded.
func rawPDFLines(data []byte) []string {
	var lines []string
	for _, stream := range pdfStreams(data) {
		content := string(inflate(stream))
		for {
			start := strings.Index(content, "BT")
			if start < 0 {
				break
			}
			end := strings.Index(content[start:], "ET")
			if end < 0 {
				break
			}
			lines = append(lines, textBlockLines(content[start+2:start+end])...)
			content = content[start+end+2:]
		}
	}
	return lines
}

func textBlockLines(block string) []string {
	var lines []string
	for _, segment := range lineBreakRe.Split(block, -1) {
		var b strings.Builder
		for _, m := range literalShowRe.FindAllStringSubmatch(segment, -1) {
			b.WriteString(unescapePDF(m[1]))
		}
		for _, m := range arrayShowRe.FindAllStringSubmatch(segment, -1) {
			for _, lit := range literalRe.FindAllStringSubmatch(m[1], -1) {
				b.WriteString(unescapePDF(lit[1]))
			}
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// pdfStreams returns the bodies of every stream ... endstream block.
func pdfStreams(data []byte) [][]byte {
	var streams [][]byte
	for {
		idx := bytes.Index(data, []byte("stream"))
		if idx < 0 {
			break
		}
		body := data[idx+len("stream"):]
		body = bytes.TrimPrefix(body, []byte("\r"))
		body = bytes.TrimPrefix(body, []byte("\n"))

		end := bytes.Index(body, []byte("endstream"))
		if end < 0 {
			break
		}
		if end > 0 {
			streams = append(streams, body[:end])
		}
		data = body[end+len("endstream"):]
	}
	return streams
}

// inflate returns the zlib-decoded stream, or the input when it is not compressed.
func inflate(data []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return data
	}
	return out
}

func unescapePDF(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'r', 't':
			b.WriteByte(' ')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
