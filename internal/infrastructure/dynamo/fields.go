package dynamo

// DynamoDB attribute names used in key maps and expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrUserID    = "user_id"
	attrProductID = "product_id"
	attrOrderID   = "order_id"
	attrReviewID  = "review_id"
	attrAddressID = "address_id"
	attrName      = "name"
	attrEmail     = "email"
	attrImageURL  = "image_url"
	attrCartItems = "cart_items"
	attrStatus    = "status"
	attrNotified  = "notified"
	attrCreatedAt = "created_at"
	attrUpdatedAt = "updated_at"
)

// indexUserID is the GSI Bootstrap creates on owned tables.
const indexUserID = "user_id-index"

// batchWriteLimit is the DynamoDB maximum number of requests per BatchWriteItem call.
const batchWriteLimit = 25

// transactLimit is the DynamoDB maximum number of actions per TransactWriteItems call.
const transactLimit = 100
