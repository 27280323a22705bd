package signer

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"

	"github.com/ASE-Bucure-ti/signbridge/pkg/certselect"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// signPDF produces a PKCS#7-embedded signature over content. pdfsign always
// appends its own signature annotation and has no parameter for targeting an
// existing AcroForm field by name, so "reuse the field if it exists" is
// implemented by probing the document ourselves: when a field named
// pdfOptions.label is already present, its widget rectangle is carried over
// as the new signature's appearance instead of the invisible default,
// mirroring the reuse-if-present fallback the original host applied around
// pyHanko's append_signature_field.
func signPDF(signerAdapter crypto.Signer, selection *certselect.Selection, obj *wire.ResolvedObject, content []byte) ([]byte, error) {
	if obj.PDFOptions == nil || obj.PDFOptions.Label == "" {
		return nil, fmt.Errorf("signer: pdf dataType requires pdfOptions.label")
	}

	appearance, _, err := findSignatureField(content, obj.PDFOptions.Label)
	if err != nil {
		return nil, fmt.Errorf("signer: probe existing signature fields: %w", err)
	}

	input := bytes.NewReader(content)
	var output bytes.Buffer

	signData := sign.SignData{
		Signature: sign.SignDataSignature{
			CertType:   sign.ApprovalSignature,
			DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
			Info: sign.SignDataSignatureInfo{
				Name:   obj.PDFOptions.Label,
				Reason: "SignBridge signature",
			},
		},
		Signer:            signerAdapter,
		DigestAlgorithm:   crypto.SHA256,
		Certificate:       selection.Certificate,
		CertificateChains: [][]*x509.Certificate{{selection.Certificate}},
		Appearance:        appearance,
	}

	if err := sign.Sign(input, &output, int64(len(content)), signData); err != nil {
		return nil, fmt.Errorf("signer: pdf sign: %w", err)
	}
	return output.Bytes(), nil
}

// findSignatureField walks the document's AcroForm/Fields array looking for
// a field whose partial name (/T) matches label. When found it returns an
// Appearance describing that field's widget rectangle so the new signature
// lands in the same visual slot rather than an unrelated new one; the page
// index is not resolved from the widget's /P entry and defaults to the
// first page. ok is false (with a zero Appearance) when no such field
// exists, signalling the caller to let pdfsign create a fresh one.
func findSignatureField(content []byte, label string) (sign.Appearance, bool, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return sign.Appearance{}, false, fmt.Errorf("parse pdf: %w", err)
	}

	fields := reader.Trailer().Key("Root").Key("AcroForm").Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		field := fields.Index(i)
		if field.Key("T").Text() != label {
			continue
		}

		rect := field.Key("Rect")
		if rect.Len() != 4 {
			return sign.Appearance{}, true, nil
		}
		return sign.Appearance{
			Visible:     true,
			LowerLeftX:  rect.Index(0).Float64(),
			LowerLeftY:  rect.Index(1).Float64(),
			UpperRightX: rect.Index(2).Float64(),
			UpperRightY: rect.Index(3).Float64(),
		}, true, nil
	}
	return sign.Appearance{}, false, nil
}
