package constants

import "time"

const (
	CacheKeyCartLines   = "carts:%s"
	CacheKeyCartVersion = "carts:%s:version"
	CacheKeyProduct     = "products:%s"
	CacheKeyOrders      = "orders:%s"

	CartLinesTTL   = time.Minute
	CartVersionTTL = 24 * time.Hour
	ProductTTL     = time.Minute
	OrdersTTL      = 5 * time.Minute
)

const ChannelOrderSettled = "storefront.order.settled"
