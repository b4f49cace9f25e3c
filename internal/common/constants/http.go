package constants

const (
	HeaderContentType   = "Content-Type"
	HeaderValueJson     = "application/json"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-Id"
	HeaderSignature     = "X-Signature"
)
