package log

const (
	KeyAppName            = "app"
	KeyRequestID          = "requestId"
	KeyTraceID            = "traceId"
	KeySpanID             = "spanId"
	KeyProcess            = "process"
	KeyTag                = "tag"
	KeyConfig             = "config"
	KeyRequest            = "request"
	KeyRequestBody        = "requestBody"
	KeyRequestHeader      = "requestHeader"
	KeyRequestHost        = "host"
	KeyRequestIp          = "requesterIP"
	KeyRequestMethod      = "requestMethod"
	KeyRequestURI         = "requestURI"
	KeyRequestURL         = "requestURL"
	KeyPathValues         = "pathValues"
	KeyDbURL              = "dbUrl"
	KeyCacheKey           = "cacheKey"
	KeyChannel            = "channel"
	KeyUserID             = "userId"
	KeyProductID          = "productId"
	KeyProduct            = "product"
	KeyPage               = "page"
	KeySelectionKey       = "selectionKey"
	KeyQuantity           = "quantity"
	KeyCartLines          = "cartLines"
	KeyQuote              = "quote"
	KeySessionID          = "sessionId"
	KeyExternalID         = "externalId"
	KeyStatus             = "status"
	KeyReason             = "reason"
	KeyConfirmedAmount    = "confirmedAmount"
	KeyRecomputedTotal    = "recomputedTotal"
	KeyOrderID            = "orderId"
	KeyOrderIDs           = "orderIds"
	KeyEventName          = "eventName"
	KeyRemainingQuantity  = "remainingQuantity"
	KeyExpiredSessionsIDs = "expiredSessionIds"
)
