package sqlstore

import (
	"encoding/json"
	"time"

	"reviewsync/internal/domain"
)

// columns collects the present fields of one record, in allow-list order.
// Absent values never make it in, so an UPDATE built from it leaves the
// stored value alone.
type columns struct {
	names []string
	vals  []any
}

func (c *columns) add(name string, v any) {
	c.names = append(c.names, name)
	c.vals = append(c.vals, v)
}

func (c *columns) str(name string, p *string) {
	if p != nil {
		c.add(name, *p)
	}
}

func (c *columns) f64(name string, p *float64) {
	if p != nil {
		c.add(name, *p)
	}
}

func (c *columns) i64(name string, p *int64) {
	if p != nil {
		c.add(name, *p)
	}
}

func (c *columns) boolean(name string, p *bool) {
	if p != nil {
		c.add(name, *p)
	}
}

func (c *columns) ts(name string, p *time.Time) {
	if p != nil {
		c.add(name, p.UTC())
	}
}

// nested values are stored as JSON text.
func (c *columns) nested(name string, n domain.Nested) {
	if !n.Empty() {
		c.add(name, string(n))
	}
}

func (c *columns) jsonOf(name string, v any, n int) error {
	if n == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.add(name, string(b))
	return nil
}

func businessColumns(b domain.Business) (columns, error) {
	var c columns
	c.str("query", b.Query)
	c.str("name", b.Name)
	c.str("name_for_emails", b.NameForEmails)
	c.add("place_id", b.PlaceID)
	c.str("google_id", b.GoogleID)
	c.str("kgmid", b.Kgmid)
	c.str("full_address", b.FullAddress)
	c.str("borough", b.Borough)
	c.str("street", b.Street)
	c.str("postal_code", b.PostalCode)
	c.boolean("area_service", b.AreaService)
	c.str("country_code", b.CountryCode)
	c.str("country", b.Country)
	c.str("city", b.City)
	c.str("us_state", b.USState)
	c.str("state", b.State)
	c.str("plus_code", b.PlusCode)
	c.f64("latitude", b.Latitude)
	c.f64("longitude", b.Longitude)
	c.str("h3", b.H3)
	c.str("time_zone", b.TimeZone)
	c.nested("popular_times", b.PopularTimes)
	c.str("site", b.Site)
	c.str("phone", b.Phone)
	c.str("type", b.Type)
	c.str("logo", b.Logo)
	c.str("description", b.Description)
	c.str("typical_time_spent", b.TypicalTimeSpent)
	c.str("located_in", b.LocatedIn)
	c.str("located_google_id", b.LocatedGoogleID)
	c.str("category", b.Category)
	c.str("subtypes", b.Subtypes)
	c.nested("posts", b.Posts)
	if err := c.jsonOf("reviews_tags", b.ReviewsTags, len(b.ReviewsTags)); err != nil {
		return c, err
	}
	c.f64("rating", b.Rating)
	c.i64("reviews_count", b.ReviewsCount)
	c.i64("photos_count", b.PhotosCount)
	c.str("cid", b.CID)
	c.str("reviews_link", b.ReviewsLink)
	c.str("reviews_id", b.ReviewsID)
	c.str("photo", b.Photo)
	c.str("street_view", b.StreetView)
	c.str("working_hours_old_format", b.WorkingHoursOldFormat)
	if err := c.jsonOf("working_hours", b.WorkingHours, len(b.WorkingHours)); err != nil {
		return c, err
	}
	c.nested("other_hours", b.OtherHours)
	c.str("business_status", b.BusinessStatus)
	c.nested("about", b.About)
	c.str("range", b.Range)
	c.nested("reviews_per_score", b.ReviewsPerScore)
	c.i64("reviews_per_score_1", b.ReviewsPerScore1)
	c.i64("reviews_per_score_2", b.ReviewsPerScore2)
	c.i64("reviews_per_score_3", b.ReviewsPerScore3)
	c.i64("reviews_per_score_4", b.ReviewsPerScore4)
	c.i64("reviews_per_score_5", b.ReviewsPerScore5)
	c.nested("reservation_links", b.ReservationLinks)
	c.str("booking_appointment_link", b.BookingAppointmentLink)
	c.str("menu_link", b.MenuLink)
	c.nested("order_links", b.OrderLinks)
	c.str("owner_id", b.OwnerID)
	c.boolean("verified", b.Verified)
	c.str("owner_title", b.OwnerTitle)
	c.str("owner_link", b.OwnerLink)
	c.str("location_link", b.LocationLink)
	c.str("location_reviews_link", b.LocationReviewsLink)
	return c, nil
}

func reviewColumns(r domain.Review) (columns, error) {
	var c columns
	c.add("business_place_id", r.BusinessPlaceID)
	c.str("google_id", r.GoogleID)
	c.add("review_id", r.ReviewID)
	c.str("review_pagination_id", r.ReviewPaginationID)
	c.str("author_link", r.AuthorLink)
	c.str("author_title", r.AuthorTitle)
	c.str("author_id", r.AuthorID)
	c.str("author_image", r.AuthorImage)
	c.i64("author_reviews_count", r.AuthorReviewsCount)
	c.i64("author_ratings_count", r.AuthorRatingsCount)
	c.str("review_text", r.ReviewText)
	if err := c.jsonOf("review_img_urls", r.ReviewImgURLs, len(r.ReviewImgURLs)); err != nil {
		return c, err
	}
	c.str("review_img_url", r.ReviewImgURL)
	if err := c.jsonOf("review_questions", r.ReviewQuestions, len(r.ReviewQuestions)); err != nil {
		return c, err
	}
	if err := c.jsonOf("review_photo_ids", r.ReviewPhotoIDs, len(r.ReviewPhotoIDs)); err != nil {
		return c, err
	}
	c.str("owner_answer", r.OwnerAnswer)
	c.i64("owner_answer_timestamp", r.OwnerAnswerTimestamp)
	c.str("owner_answer_timestamp_datetime_utc", r.OwnerAnswerTimestampDatetimeUTC)
	c.str("review_link", r.ReviewLink)
	c.f64("review_rating", r.ReviewRating)
	c.i64("review_timestamp", r.ReviewTimestamp)
	c.ts("review_datetime_utc", r.ReviewDatetimeUTC)
	c.i64("review_likes", r.ReviewLikes)
	c.str("reviews_id", r.ReviewsID)
	c.nested("replies", r.Replies)
	return c, nil
}
