// Package wire defines the JSON envelope exchanged with the browser
// extension and the HTTP callback payloads delivered to caller endpoints.
package wire

// ProtocolVersion is the single protocol version this host accepts.
const ProtocolVersion = "1.0"

// DataType identifies the shape of an object's content and signature.
type DataType string

const (
	DataTypeText   DataType = "text"
	DataTypeXML    DataType = "xml"
	DataTypeJSON   DataType = "json"
	DataTypePDF    DataType = "pdf"
	DataTypeBinary DataType = "binary"
)

// SignedContentType identifies the Content-Type family of an uploaded
// signature artifact.
type SignedContentType string

const (
	SignedContentString SignedContentType = "string"
	SignedContentPDF     SignedContentType = "pdf"
	SignedContentXML     SignedContentType = "xml"
	SignedContentBinary  SignedContentType = "binary"
)

// ContentTypeHeader maps a SignedContentType to the HTTP Content-Type used
// on upload.
func (s SignedContentType) ContentTypeHeader() string {
	switch s {
	case SignedContentString:
		return "text/plain"
	case SignedContentPDF:
		return "application/pdf"
	case SignedContentXML:
		return "application/xml"
	case SignedContentBinary:
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

// ErrorCode is one of the stable wire error identifiers.
type ErrorCode string

const (
	ErrBadRequest              ErrorCode = "BAD_REQUEST"
	ErrUnsupportedVersion      ErrorCode = "UNSUPPORTED_VERSION"
	ErrUnsupportedType         ErrorCode = "UNSUPPORTED_TYPE"
	ErrCertNotFound            ErrorCode = "CERT_NOT_FOUND"
	ErrSignFailed              ErrorCode = "SIGN_FAILED"
	ErrDownloadFailed          ErrorCode = "DOWNLOAD_FAILED"
	ErrUploadFailed            ErrorCode = "UPLOAD_FAILED"
	ErrTimeout                 ErrorCode = "TIMEOUT"
	ErrProgressEndpointFailed  ErrorCode = "PROGRESS_ENDPOINT_FAILED"
	ErrCancelledByUser         ErrorCode = "CANCELLED_BY_USER"
	ErrInternal                ErrorCode = "INTERNAL_ERROR"
)

// CertSelector names the certificate the caller wants used for signing.
type CertSelector struct {
	CertID string `json:"certId"`
}

// ContentSpec is the wire shape of an object's content source, for both
// top-level objects and (with ID/content trimmed) group templates.
type ContentSpec struct {
	Mode     string            `json:"mode"` // "inline" | "remote"
	Encoding string            `json:"encoding,omitempty"`
	Value    string            `json:"value,omitempty"`
	URL      string            `json:"url,omitempty"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// UploadSpec is the wire shape of an object's (or group's) upload target.
type UploadSpec struct {
	UploadURL         string            `json:"uploadUrl"`
	HTTPMethod        string            `json:"httpMethod"`
	Headers           map[string]string `json:"headers,omitempty"`
	SignedContentType SignedContentType `json:"signedContentType"`
}

// CallbackSpec is the wire shape of an object's (or group's) callback
// endpoints.
type CallbackSpec struct {
	OnSuccess string            `json:"onSuccess"`
	OnError   string            `json:"onError"`
	Progress  string            `json:"progress,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// PDFOptions are pdf-dataType-specific signing options.
type PDFOptions struct {
	Label string `json:"label"`
}

// XMLOptions are xml-dataType-specific signing options.
type XMLOptions struct {
	XPath       string `json:"xpath,omitempty"`
	IDAttribute string `json:"idAttribute,omitempty"`
}

// Object is one fully self-describing top-level work item.
type Object struct {
	ID         string            `json:"id"`
	DataType   DataType          `json:"dataType"`
	Content    ContentSpec       `json:"content"`
	Upload     UploadSpec        `json:"upload"`
	Callbacks  CallbackSpec      `json:"callbacks"`
	PDFOptions *PDFOptions       `json:"pdfOptions,omitempty"`
	XMLOptions *XMLOptions       `json:"xmlOptions,omitempty"`
}

// GroupObject is the trimmed shape of an object inside an ObjectGroup: it
// supplies only an id and, for inline groups, its own content value.
type GroupObject struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
}

// ObjectGroup factors shared fields across a list of GroupObjects, with
// <objectId> templating in URLs.
type ObjectGroup struct {
	DataType    DataType          `json:"dataType"`
	Mode        string            `json:"mode"` // "inline" | "remote"
	DownloadURL string            `json:"downloadUrl,omitempty"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Upload      UploadSpec        `json:"upload"`
	Callbacks   CallbackSpec      `json:"callbacks"`
	PDFOptions  *PDFOptions       `json:"pdfOptions,omitempty"`
	XMLOptions  *XMLOptions       `json:"xmlOptions,omitempty"`
	Objects     []GroupObject     `json:"objects"`
}

// RequestEnvelope is the top-level request read from the browser.
type RequestEnvelope struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	RequestID       string                 `json:"requestId"`
	AppID           string                 `json:"appId"`
	CorrelationID   string                 `json:"correlationId,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Cert            CertSelector           `json:"cert"`
	Objects         []Object               `json:"objects,omitempty"`
	ObjectGroups    []ObjectGroup          `json:"objectGroups,omitempty"`
}

// ResolvedObject is the normalized, post-resolver work item every
// downstream stage consumes.
type ResolvedObject struct {
	ID       string
	DataType DataType

	InlineContent string // non-empty iff sourced inline
	DownloadURL   string // non-empty iff sourced remotely
	DownloadMethod string
	DownloadHeaders map[string]string

	UploadURL         string
	UploadMethod      string
	UploadHeaders     map[string]string
	SignedContentType SignedContentType

	OnSuccess        string
	OnError          string
	ProgressURL      string
	CallbackHeaders  map[string]string

	PDFOptions *PDFOptions
	XMLOptions *XMLOptions

	Sequence int    // position in declaration order
	GroupID  string // diagnostic only, never serialized
}

// RequestError is one entry of a response's errors list: a request-level
// error (empty ID) or a per-object error keyed by the object's ID.
type RequestError struct {
	ID      string    `json:"id,omitempty"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// UploadResult captures the verbatim (truncated) upload response.
type UploadResult struct {
	StatusCode   int    `json:"statusCode"`
	ResponseBody string `json:"responseBody"`
}

// ObjectResult is one successfully completed object.
type ObjectResult struct {
	ID             string        `json:"id"`
	Status         string        `json:"status"` // always "ok"
	UploadResult   UploadResult  `json:"uploadResult"`
	CallbackResult string        `json:"callbackResult,omitempty"`
}

// Metrics accompanies every response envelope.
type Metrics struct {
	TotalMs int64 `json:"totalMs"`
}

// ResponseEnvelope is the acknowledgment returned over the framed stream.
type ResponseEnvelope struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	RequestID       string                 `json:"requestId"`
	Status          string                 `json:"status"` // ok | partial | error
	Results         []ObjectResult         `json:"results"`
	Errors          []RequestError         `json:"errors,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Metrics         Metrics                `json:"metrics"`
}

// ProgressCallback is the body POSTed for a "signing" or "uploading"
// progress update.
type ProgressCallback struct {
	ObjectID         string                 `json:"objectId"`
	RequestID        string                 `json:"requestId"`
	Status           string                 `json:"status"` // "signing" | "uploading"
	PercentComplete  int                    `json:"percentComplete"`
	Message          string                 `json:"message"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// SuccessCallback is the body POSTed when an object completes.
type SuccessCallback struct {
	ObjectID     string                 `json:"objectId"`
	RequestID    string                 `json:"requestId"`
	Status       string                 `json:"status"` // "completed"
	UploadResult UploadResult           `json:"uploadResult"`
	Timestamp    string                 `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ErrorCallback is the body POSTed when an object fails.
type ErrorCallback struct {
	ObjectID  string                 `json:"objectId"`
	RequestID string                 `json:"requestId"`
	Status    string                 `json:"status"` // "failed"
	Error     CallbackError          `json:"error"`
	Timestamp string                 `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CallbackError is the error payload embedded in an ErrorCallback.
type CallbackError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
