package extractor

import (
	"bytes"
	"compress/zlib"
	"testing"
)

func TestRawPDFLines(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write([]byte("BT\n/F1 10 Tf\n72 700 Td\n[(Ship) -250 (Doc SD-9)] TJ\n0 -14 Td\n(Ref \\(A\\)) Tj\nET\n"))
	zw.Close()

	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n1 0 obj\n<< /Length 10 /Filter /FlateDecode >>\nstream\n")
	doc.Write(compressed.Bytes())
	doc.WriteString("\nendstream\nendobj\n2 0 obj\n<< /Length 40 >>\nstream\nBT 72 600 Td (1Z999AA10123456784) Tj ET\nendstream\nendobj\n")

	got := rawPDFLines(doc.Bytes())
	want := []string{"ShipDoc SD-9", "Ref (A)", "1Z999AA10123456784"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRead_PDFFallsBackToRawStreams(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Length 60 >>\nstream\nBT\n/F1 12 Tf\n72 712 Td\n(Tracking 1Z999AA10123456784) Tj\nET\nendstream\nendobj\n%%EOF\n")

	table, err := Read("label.pdf", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Format != FormatPDF || len(table.Headers) != 1 || table.Headers[0] != pdfTextHeader {
		t.Fatalf("unexpected table: %+v", table)
	}
	if len(table.Rows) != 1 || table.Rows[0][pdfTextHeader] != "Tracking 1Z999AA10123456784" {
		t.Errorf("rows: got %v", table.Rows)
	}
}

func TestRead_PDFWithoutText(t *testing.T) {
	if _, err := Read("scan.pdf", []byte("%PDF-1.4\n%%EOF\n")); err == nil {
		t.Error("expected error for a PDF without text")
	}
}
