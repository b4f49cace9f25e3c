package constants

const (
	AppStorefront      = "storefront"
	AppCartService     = "cart-service"
	AppCheckoutService = "checkout-service"
	AppCheckoutSweeper = "checkout-sweeper"
	AppProductService  = "product-service"
	AppOrderService    = "order-service"
	AppOrderListener   = "order-settled-listener"
	AppMigrate         = "migrate"
)
