package signer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/digitorus/pdfsign/sign"
	"github.com/stretchr/testify/require"

	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

func TestSignPDFRequiresLabel(t *testing.T) {
	_, err := signPDF(nil, nil, &wire.ResolvedObject{DataType: wire.DataTypePDF}, []byte("%PDF-1.4"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "pdfOptions.label")
}

func TestSignPDFRequiresNonEmptyLabel(t *testing.T) {
	obj := &wire.ResolvedObject{DataType: wire.DataTypePDF, PDFOptions: &wire.PDFOptions{Label: ""}}
	_, err := signPDF(nil, nil, obj, []byte("%PDF-1.4"))
	require.Error(t, err)
}

func TestFindSignatureFieldDetectsExistingField(t *testing.T) {
	doc := buildTestPDF(t, "ExistingSignature", [4]float64{10, 20, 110, 70})

	appearance, found, err := findSignatureField(doc, "ExistingSignature")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sign.Appearance{
		Visible:     true,
		LowerLeftX:  10,
		LowerLeftY:  20,
		UpperRightX: 110,
		UpperRightY: 70,
	}, appearance)
}

func TestFindSignatureFieldReturnsFalseForDifferentLabel(t *testing.T) {
	doc := buildTestPDF(t, "ExistingSignature", [4]float64{10, 20, 110, 70})

	appearance, found, err := findSignatureField(doc, "SomeOtherLabel")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, sign.Appearance{}, appearance)
}

func TestFindSignatureFieldReturnsFalseWhenNoAcroForm(t *testing.T) {
	doc := buildTestPDF(t, "", [4]float64{})

	appearance, found, err := findSignatureField(doc, "AnyLabel")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, sign.Appearance{}, appearance)
}

// buildTestPDF hand-assembles a minimal, byte-exact-xref PDF with a single
// page and, when fieldName is non-empty, an AcroForm containing one /Sig
// field named fieldName with the given rectangle.
func buildTestPDF(t *testing.T, fieldName string, rect [4]float64) []byte {
	t.Helper()

	var buf bytes.Buffer
	offsets := make(map[int]int)

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.4\n")

	hasForm := fieldName != ""
	if hasForm {
		writeObj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 5 0 R >>")
	} else {
		writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	}
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources << >> >>")

	maxObj := 3
	if hasForm {
		writeObj(5, "<< /Fields [6 0 R] >>")
		writeObj(6, fmt.Sprintf("<< /FT /Sig /T (%s) /Rect [%g %g %g %g] >>",
			fieldName, rect[0], rect[1], rect[2], rect[3]))
		maxObj = 6
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxObj+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObj; i++ {
		off, ok := offsets[i]
		if !ok {
			buf.WriteString("0000000000 00000 f \n")
			continue
		}
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\n", maxObj+1)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}
