package testutil

import "github.com/google/uuid"

// Products inserted by seed/products.seed.sql.
var (
	ProductA = uuid.MustParse("0195a1c2-0000-7000-8000-00000000000a")
	ProductB = uuid.MustParse("0195a1c2-0000-7000-8000-00000000000b")
	Hoodie   = uuid.MustParse("0195a1c2-0000-7000-8000-00000000000c")
)

// Sessions and orders inserted by seed/sessions.seed.sql. Init scripts run in
// name order, so it lands after the products seed it references.
const (
	OrderUser = "user_orders"
	OtherUser = "user_other"
)

var (
	OrderProductA  = uuid.MustParse("0195a1c4-0000-7000-8000-0000000000b1")
	OrderHoodie    = uuid.MustParse("0195a1c4-0000-7000-8000-0000000000b2")
	OtherUserOrder = uuid.MustParse("0195a1c4-0000-7000-8000-0000000000b3")
)

const (
	ProductsSeed = "products.seed.sql"
	SessionsSeed = "sessions.seed.sql"
)
