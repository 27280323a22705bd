package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

func baseObjectsRequest() string {
	return `{
		"protocolVersion": "1.0",
		"requestId": "req-1",
		"appId": "app-1",
		"cert": {"certId": "abc123"},
		"objects": [
			{
				"id": "obj-1",
				"dataType": "text",
				"content": {"mode": "inline", "value": "aGVsbG8="},
				"upload": {"uploadUrl": "https://example.test/upload", "httpMethod": "PUT", "signedContentType": "string"},
				"callbacks": {"onSuccess": "https://example.test/ok", "onError": "https://example.test/err"}
			}
		]
	}`
}

func TestValidateAcceptsWellFormedObjectsRequest(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	env, reqErr := v.Validate([]byte(baseObjectsRequest()))
	require.Nil(t, reqErr)
	require.NotNil(t, env)
	require.Equal(t, "req-1", env.RequestID)
	require.Len(t, env.Objects, 1)
}

func TestValidateRejectsUnsupportedVersion(t *testing.T) {
	v := NewValidator("1.0")
	raw := `{"protocolVersion":"2.0","requestId":"r","cert":{"certId":"x"},"objects":[{"id":"o","dataType":"text","content":{"mode":"inline","value":"aGk="},"upload":{"uploadUrl":"https://x/y","signedContentType":"string"},"callbacks":{"onSuccess":"https://x/s","onError":"https://x/e"}}]}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrUnsupportedVersion, reqErr.Code)
}

func TestValidateRejectsGarbledVersionAsBadRequest(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{"protocolVersion":"not-a-version","requestId":"r","cert":{"certId":"x"},"objects":[]}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateRejectsBothObjectsAndGroups(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{
		"protocolVersion": "1.0",
		"requestId": "r",
		"cert": {"certId": "x"},
		"objects": [{"id":"o","dataType":"text","content":{"mode":"inline","value":"aGk="},"upload":{"uploadUrl":"https://x/y","signedContentType":"string"},"callbacks":{"onSuccess":"https://x/s","onError":"https://x/e"}}],
		"objectGroups": [{"dataType":"text","mode":"inline","upload":{"uploadUrl":"https://x/<objectId>","signedContentType":"string"},"callbacks":{"onSuccess":"https://x/s","onError":"https://x/e"},"objects":[{"id":"o2","content":"aGk="}]}]
	}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateRejectsNeitherObjectsNorGroups(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{"protocolVersion":"1.0","requestId":"r","cert":{"certId":"x"}}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateRejectsUnknownDataType(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{"protocolVersion":"1.0","requestId":"r","cert":{"certId":"x"},"objects":[{"id":"o","dataType":"spreadsheet","content":{"mode":"inline","value":"aGk="},"upload":{"uploadUrl":"https://x/y","signedContentType":"string"},"callbacks":{"onSuccess":"https://x/s","onError":"https://x/e"}}]}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrUnsupportedType, reqErr.Code)
}

func TestValidateRequiresRemoteModeForPDF(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{"protocolVersion":"1.0","requestId":"r","cert":{"certId":"x"},"objects":[{"id":"o","dataType":"pdf","content":{"mode":"inline","value":"aGk="},"upload":{"uploadUrl":"https://x/y","signedContentType":"pdf"},"callbacks":{"onSuccess":"https://x/s","onError":"https://x/e"},"pdfOptions":{"label":"Sig1"}}]}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateRequiresPDFLabel(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{"protocolVersion":"1.0","requestId":"r","cert":{"certId":"x"},"objects":[{"id":"o","dataType":"pdf","content":{"mode":"remote","url":"https://x/doc.pdf"},"upload":{"uploadUrl":"https://x/y","signedContentType":"pdf"},"callbacks":{"onSuccess":"https://x/s","onError":"https://x/e"}}]}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateRequiresObjectIdPlaceholderInGroupDownloadURL(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{
		"protocolVersion": "1.0",
		"requestId": "r",
		"cert": {"certId": "x"},
		"objectGroups": [{
			"dataType": "text",
			"mode": "remote",
			"downloadUrl": "https://x/docs/fixed.json",
			"upload": {"uploadUrl": "https://x/upload/<objectId>", "signedContentType": "string"},
			"callbacks": {"onSuccess": "https://x/s", "onError": "https://x/e"},
			"objects": [{"id": "o1"}]
		}]
	}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateAcceptsWellFormedGroupRequest(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{
		"protocolVersion": "1.0",
		"requestId": "r",
		"cert": {"certId": "x"},
		"objectGroups": [{
			"dataType": "json",
			"mode": "remote",
			"downloadUrl": "https://x/docs/<objectId>.json",
			"upload": {"uploadUrl": "https://x/upload/<objectId>", "signedContentType": "string"},
			"callbacks": {"onSuccess": "https://x/s", "onError": "https://x/e"},
			"objects": [{"id": "o1"}, {"id": "o2"}]
		}]
	}`
	env, reqErr := v.Validate([]byte(raw))
	require.Nil(t, reqErr)
	require.NotNil(t, env)
	require.Len(t, env.ObjectGroups[0].Objects, 2)
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	_, reqErr := v.Validate([]byte(`{not json`))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}

func TestValidateRejectsMissingCertID(t *testing.T) {
	v := NewValidator(wire.ProtocolVersion)
	raw := `{"protocolVersion":"1.0","requestId":"r","cert":{},"objects":[]}`
	_, reqErr := v.Validate([]byte(raw))
	require.NotNil(t, reqErr)
	require.Equal(t, wire.ErrBadRequest, reqErr.Code)
}
