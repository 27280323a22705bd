package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/ASE-Bucure-ti/signbridge/pkg/certselect"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

const (
	dsNamespace               = "http://www.w3.org/2000/09/xmldsig#"
	c14n11Algorithm           = "http://www.w3.org/2006/12/xml-c14n11"
	envelopedTransformAlgo    = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	rsaSHA256SignatureAlgo    = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	sha256DigestAlgo          = "http://www.w3.org/2001/04/xmlenc#sha256"
	signatureElementLocalName = "Signature"
)

// signXML produces an enveloped XMLDSig signature (RSA-SHA256, Canonical
// XML 1.1) per spec.md §4.6's placement rules.
func signXML(signerAdapter crypto.Signer, selection *certselect.Selection, obj *wire.ResolvedObject, content []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("signer: parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("signer: xml document has no root element")
	}

	placeholder, insertionParent := resolvePlacement(doc, obj)

	canon := dsig.MakeC14N11Canonicalizer()

	// Digest is computed over the document as it will exist once any
	// existing placeholder is removed, per the enveloped-signature
	// transform: the generated signature is never part of its own digest.
	if placeholder != nil {
		removeElement(placeholder)
	}
	refDigest, err := canonicalDigest(canon, root)
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalize reference: %w", err)
	}

	referenceURI := referenceURIFor(root, obj)

	signatureEl := buildSignatureElement(selection.Certificate, referenceURI, refDigest)

	signedInfoEl := signatureEl.FindElement("SignedInfo")
	signedInfoDigest, signature, err := signSignedInfo(canon, signerAdapter, signedInfoEl)
	if err != nil {
		return nil, err
	}
	_ = signedInfoDigest

	signatureEl.FindElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(signature))

	insertionParent.AddChild(signatureEl)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("signer: serialize signed xml: %w", err)
	}
	return out, nil
}

// resolvePlacement implements the three-way placement rule: xpath
// resolves to a Signature-named element (placeholder, returned for
// removal+replacement), to any other element (signature appended as its
// last child), or to nothing/omitted (signature appended to the root).
func resolvePlacement(doc *etree.Document, obj *wire.ResolvedObject) (placeholder *etree.Element, parent *etree.Element) {
	root := doc.Root()
	if obj.XMLOptions == nil || obj.XMLOptions.XPath == "" {
		return nil, root
	}
	target := root.FindElement(obj.XMLOptions.XPath)
	if target == nil {
		return nil, root
	}
	if target.Tag == signatureElementLocalName {
		return target, target.Parent()
	}
	return nil, target
}

func removeElement(el *etree.Element) {
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
	}
}

// referenceURIFor resolves the Reference/@URI: an empty string (whole
// enveloped document) unless idAttribute names an attribute present on
// the root, in which case the reference targets that fragment.
func referenceURIFor(root *etree.Element, obj *wire.ResolvedObject) string {
	if obj.XMLOptions == nil || obj.XMLOptions.IDAttribute == "" {
		return ""
	}
	if v := root.SelectAttrValue(obj.XMLOptions.IDAttribute, ""); v != "" {
		return "#" + v
	}
	return ""
}

func canonicalDigest(canon dsig.Canonicalizer, el *etree.Element) ([]byte, error) {
	canonical, err := canon.Canonicalize(el)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

func buildSignatureElement(cert *x509.Certificate, referenceURI string, refDigest []byte) *etree.Element {
	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", dsNamespace)

	signedInfo := sig.CreateElement("SignedInfo")
	canonMethod := signedInfo.CreateElement("CanonicalizationMethod")
	canonMethod.CreateAttr("Algorithm", c14n11Algorithm)
	sigMethod := signedInfo.CreateElement("SignatureMethod")
	sigMethod.CreateAttr("Algorithm", rsaSHA256SignatureAlgo)

	reference := signedInfo.CreateElement("Reference")
	reference.CreateAttr("URI", referenceURI)
	transforms := reference.CreateElement("Transforms")
	envTransform := transforms.CreateElement("Transform")
	envTransform.CreateAttr("Algorithm", envelopedTransformAlgo)
	c14nTransform := transforms.CreateElement("Transform")
	c14nTransform.CreateAttr("Algorithm", c14n11Algorithm)
	digestMethod := reference.CreateElement("DigestMethod")
	digestMethod.CreateAttr("Algorithm", sha256DigestAlgo)
	digestValue := reference.CreateElement("DigestValue")
	digestValue.SetText(base64.StdEncoding.EncodeToString(refDigest))

	sig.CreateElement("SignatureValue")

	keyInfo := sig.CreateElement("KeyInfo")
	x509Data := keyInfo.CreateElement("X509Data")
	x509Cert := x509Data.CreateElement("X509Certificate")
	x509Cert.SetText(base64.StdEncoding.EncodeToString(cert.Raw))

	return sig
}

func signSignedInfo(canon dsig.Canonicalizer, signerAdapter crypto.Signer, signedInfo *etree.Element) ([]byte, []byte, error) {
	digest, err := canonicalDigest(canon, signedInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("signer: canonicalize SignedInfo: %w", err)
	}
	sig, err := signerAdapter.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		return nil, nil, fmt.Errorf("signer: sign SignedInfo digest: %w", err)
	}
	return digest, sig, nil
}
