package sqlstore

const (
	businessesTable = "businesses"
	reviewsTable    = "reviews"
	businessKey     = "place_id"
	reviewKey       = "review_id"

	recordSavepoint = "sp_record"
)

// Place ids with a live subscription; expires_at NULL means open-ended.
const activeSubscriptionsSQL = `
SELECT DISTINCT business_place_id
FROM user_business
WHERE subscription_status = 'active'
  AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
ORDER BY business_place_id
`

var businessViewCols = []string{
	"place_id", "name", "full_address", "city", "country", "latitude", "longitude",
	"category", "site", "phone", "rating", "reviews_count",
}

var reviewViewCols = []string{
	"review_id", "author_title", "review_text", "review_rating", "review_datetime_utc", "owner_answer",
}
