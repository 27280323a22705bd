// Package validate performs structural and semantic validation of a raw
// request envelope, converting it into a typed wire.RequestEnvelope or
// rejecting it with a single request-level error. Validation never
// mutates its input and never starts any work; on the first failure it
// returns immediately.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// Validator checks request envelopes against the host's pinned protocol
// version and the semantic rules in spec.md §4.2.
type Validator struct {
	pinnedVersion string
}

// NewValidator creates a Validator pinned to the given protocol version.
func NewValidator(pinnedVersion string) *Validator {
	return &Validator{pinnedVersion: pinnedVersion}
}

// Validate parses and validates raw, returning either a typed envelope or
// a single request-level error. It never returns both.
func (v *Validator) Validate(raw []byte) (*wire.RequestEnvelope, *wire.RequestError) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, badRequest("malformed JSON: " + err.Error())
	}

	if err := checkSchema(generic); err != nil {
		return nil, badRequest(err.Error())
	}

	var env wire.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, badRequest("malformed envelope: " + err.Error())
	}

	if reqErr := v.validateVersion(env.ProtocolVersion); reqErr != nil {
		return nil, reqErr
	}

	if strings.TrimSpace(env.RequestID) == "" {
		return nil, badRequest("requestId is required")
	}
	if strings.TrimSpace(env.Cert.CertID) == "" {
		return nil, badRequest("cert.certId is required")
	}

	hasObjects := len(env.Objects) > 0
	hasGroups := len(env.ObjectGroups) > 0
	if hasObjects == hasGroups {
		// Both absent, or both present: request-level error either way.
		if hasObjects {
			return nil, badRequest("exactly one of objects/objectGroups must be supplied, got both")
		}
		return nil, badRequest("exactly one of objects/objectGroups must be supplied, got neither")
	}

	if hasObjects {
		for i, obj := range env.Objects {
			if reqErr := v.validateObject(fmt.Sprintf("objects[%d]", i), obj); reqErr != nil {
				return nil, reqErr
			}
		}
	} else {
		for i, group := range env.ObjectGroups {
			if reqErr := v.validateGroup(fmt.Sprintf("objectGroups[%d]", i), group); reqErr != nil {
				return nil, reqErr
			}
		}
	}

	return &env, nil
}

func (v *Validator) validateVersion(declared string) *wire.RequestError {
	if strings.TrimSpace(declared) == "" {
		return badRequest("protocolVersion is required")
	}
	// A version string must at least look like a version; this is a
	// structural check distinct from the strict-equality semantic check
	// below, so a garbled string is BAD_REQUEST rather than
	// UNSUPPORTED_VERSION.
	if _, err := semver.NewVersion(coerceSemver(declared)); err != nil {
		return badRequest(fmt.Sprintf("protocolVersion %q is not a valid version string", declared))
	}
	if declared != v.pinnedVersion {
		return &wire.RequestError{
			Code:    wire.ErrUnsupportedVersion,
			Message: fmt.Sprintf("unsupported protocol version %q, host requires %q", declared, v.pinnedVersion),
		}
	}
	return nil
}

// coerceSemver pads a bare "MAJOR.MINOR" version (this protocol's actual
// shape) out to MAJOR.MINOR.PATCH so semver.NewVersion accepts it; the
// strict-equality check above still compares the original string.
func coerceSemver(s string) string {
	if strings.Count(s, ".") == 1 {
		return s + ".0"
	}
	return s
}

func (v *Validator) validateObject(path string, obj wire.Object) *wire.RequestError {
	if strings.TrimSpace(obj.ID) == "" {
		return badRequest(path + ".id is required")
	}
	if !isKnownDataType(obj.DataType) {
		return unsupportedType(fmt.Sprintf("%s.dataType %q is not supported", path, obj.DataType))
	}
	if strings.TrimSpace(obj.Content.Mode) != "inline" && strings.TrimSpace(obj.Content.Mode) != "remote" {
		return badRequest(path + ".content.mode must be \"inline\" or \"remote\"")
	}
	if requiresRemote(obj.DataType) && obj.Content.Mode != "remote" {
		return badRequest(fmt.Sprintf("%s: dataType %q requires remote content mode", path, obj.DataType))
	}
	if obj.Content.Mode == "inline" && strings.TrimSpace(obj.Content.Value) == "" {
		return badRequest(path + ".content.value is required for inline mode")
	}
	if obj.Content.Mode == "inline" && len(obj.Content.Value) > maxInlineBytes {
		return badRequest(fmt.Sprintf("%s.content.value exceeds the %d byte inline cap", path, maxInlineBytes))
	}
	if obj.Content.Mode == "remote" && strings.TrimSpace(obj.Content.URL) == "" {
		return badRequest(path + ".content.url is required for remote mode")
	}
	if strings.TrimSpace(obj.Upload.UploadURL) == "" {
		return badRequest(path + ".upload.uploadUrl is required")
	}
	if strings.TrimSpace(obj.Callbacks.OnSuccess) == "" || strings.TrimSpace(obj.Callbacks.OnError) == "" {
		return badRequest(path + ".callbacks.onSuccess and onError are required")
	}
	if obj.DataType == wire.DataTypePDF {
		if obj.PDFOptions == nil || strings.TrimSpace(obj.PDFOptions.Label) == "" {
			return badRequest(path + ".pdfOptions.label is required when dataType=pdf")
		}
	}
	return nil
}

func (v *Validator) validateGroup(path string, group wire.ObjectGroup) *wire.RequestError {
	if !isKnownDataType(group.DataType) {
		return unsupportedType(fmt.Sprintf("%s.dataType %q is not supported", path, group.DataType))
	}
	if strings.TrimSpace(group.Mode) != "inline" && strings.TrimSpace(group.Mode) != "remote" {
		return badRequest(path + ".mode must be \"inline\" or \"remote\"")
	}
	if requiresRemote(group.DataType) && group.Mode != "remote" {
		return badRequest(fmt.Sprintf("%s: dataType %q requires remote mode", path, group.DataType))
	}
	if group.Mode == "remote" {
		if strings.TrimSpace(group.DownloadURL) == "" {
			return badRequest(path + ".downloadUrl is required for remote mode")
		}
		if !strings.Contains(group.DownloadURL, "<objectId>") {
			return badRequest(path + ".downloadUrl must contain the literal <objectId> placeholder")
		}
	}
	if strings.TrimSpace(group.Upload.UploadURL) == "" {
		return badRequest(path + ".upload.uploadUrl is required")
	}
	if !strings.Contains(group.Upload.UploadURL, "<objectId>") {
		return badRequest(path + ".upload.uploadUrl must contain the literal <objectId> placeholder")
	}
	if strings.TrimSpace(group.Callbacks.OnSuccess) == "" || strings.TrimSpace(group.Callbacks.OnError) == "" {
		return badRequest(path + ".callbacks.onSuccess and onError are required")
	}
	if group.DataType == wire.DataTypePDF {
		if group.PDFOptions == nil || strings.TrimSpace(group.PDFOptions.Label) == "" {
			return badRequest(path + ".pdfOptions.label is required when dataType=pdf")
		}
	}
	if len(group.Objects) == 0 {
		return badRequest(path + ".objects must contain at least one entry")
	}
	for i, inner := range group.Objects {
		innerPath := fmt.Sprintf("%s.objects[%d]", path, i)
		if strings.TrimSpace(inner.ID) == "" {
			return badRequest(innerPath + ".id is required")
		}
		if group.Mode == "inline" && strings.TrimSpace(inner.Content) == "" {
			return badRequest(innerPath + ".content is required for an inline group")
		}
		if group.Mode == "inline" && len(inner.Content) > maxInlineBytes {
			return badRequest(fmt.Sprintf("%s.content exceeds the %d byte inline cap", innerPath, maxInlineBytes))
		}
	}
	return nil
}

// maxInlineBytes is the 1 MiB hard cap on each inline payload.
const maxInlineBytes = 1 << 20

func isKnownDataType(dt wire.DataType) bool {
	switch dt {
	case wire.DataTypeText, wire.DataTypeXML, wire.DataTypeJSON, wire.DataTypePDF, wire.DataTypeBinary:
		return true
	default:
		return false
	}
}

func requiresRemote(dt wire.DataType) bool {
	return dt == wire.DataTypePDF || dt == wire.DataTypeBinary
}

func badRequest(msg string) *wire.RequestError {
	return &wire.RequestError{Code: wire.ErrBadRequest, Message: msg}
}

func unsupportedType(msg string) *wire.RequestError {
	return &wire.RequestError{Code: wire.ErrUnsupportedType, Message: msg}
}
