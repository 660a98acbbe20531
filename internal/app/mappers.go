package app

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"reviewsync/internal/domain"
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// getString: string at path; numbers and bools are formatted, anything else is absent.
func getString(m map[string]any, path string) *string {
	var s string
	switch v := lookupAny(m, path).(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	default:
		return nil
	}
	return &s
}

// getFloatFlexible: number from path (float64/int/json.Number/string like "4,5").
func getFloatFlexible(m map[string]any, path string) *float64 {
	switch v := lookupAny(m, path).(type) {
	case float64:
		f := v
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

// getInt64Flexible: int64 from path (float64/int/json.Number/string).
func getInt64Flexible(m map[string]any, path string) *int64 {
	switch v := lookupAny(m, path).(type) {
	case float64:
		x := int64(v)
		return &x
	case int:
		x := int64(v)
		return &x
	case int64:
		x := v
		return &x
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return &n
		}
		if f, err := v.Float64(); err == nil {
			x := int64(f)
			return &x
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

func getBool(m map[string]any, path string) *bool {
	switch v := lookupAny(m, path).(type) {
	case bool:
		b := v
		return &b
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return &b
		}
	}
	return nil
}

// getNested keeps any non-empty structure at path as raw JSON.
func getNested(m map[string]any, path string) domain.Nested {
	v := lookupAny(m, path)
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	n := domain.Nested(b)
	if n.Empty() {
		return nil
	}
	return n
}

// getStringList: accept []any of scalars, []string, or a single string.
func getStringList(m map[string]any, path string) domain.StringList {
	var out domain.StringList
	switch v := lookupAny(m, path).(type) {
	case []string:
		out = append(out, v...)
	case string:
		if v != "" {
			out = append(out, v)
		}
	case []any:
		for _, it := range v {
			if s := scalarString(it); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// getHours: {"Monday": "9AM-5PM"} or {"Monday": ["9AM-1PM", "2PM-6PM"]}.
func getHours(m map[string]any, path string) domain.Hours {
	raw, ok := lookupAny(m, path).(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(domain.Hours, len(raw))
	for day, v := range raw {
		switch t := v.(type) {
		case string:
			out[day] = []string{t}
		case []any:
			ranges := make([]string, 0, len(t))
			for _, it := range t {
				if s := scalarString(it); s != "" {
					ranges = append(ranges, s)
				}
			}
			out[day] = ranges
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func getQuestions(m map[string]any, path string) domain.Questions {
	raw, ok := lookupAny(m, path).(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(domain.Questions, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[k] = scalarString(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalarString(v any) string {
	if s := getString(map[string]any{"v": v}, "v"); s != nil {
		return *s
	}
	return ""
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

/********** business mapper **********/

// MapBusiness narrows a provider business payload to the stored allow-list.
// Unknown keys are dropped; null or missing values stay absent.
func MapBusiness(p map[string]any) domain.Business {
	return domain.Business{
		PlaceID: deref(getString(p, "place_id")),

		Query:         getString(p, "query"),
		Name:          getString(p, "name"),
		NameForEmails: getString(p, "name_for_emails"),
		GoogleID:      getString(p, "google_id"),
		Kgmid:         getString(p, "kgmid"),
		FullAddress:   getString(p, "full_address"),
		Borough:       getString(p, "borough"),
		Street:        getString(p, "street"),
		PostalCode:    getString(p, "postal_code"),
		AreaService:   getBool(p, "area_service"),
		CountryCode:   getString(p, "country_code"),
		Country:       getString(p, "country"),
		City:          getString(p, "city"),
		USState:       getString(p, "us_state"),
		State:         getString(p, "state"),
		PlusCode:      getString(p, "plus_code"),
		Latitude:      getFloatFlexible(p, "latitude"),
		Longitude:     getFloatFlexible(p, "longitude"),
		H3:            getString(p, "h3"),
		TimeZone:      getString(p, "time_zone"),
		PopularTimes:  getNested(p, "popular_times"),
		Site:          getString(p, "site"),
		Phone:         getString(p, "phone"),
		Type:          getString(p, "type"),
		Logo:          getString(p, "logo"),
		Description:   getString(p, "description"),

		TypicalTimeSpent: getString(p, "typical_time_spent"),
		LocatedIn:        getString(p, "located_in"),
		LocatedGoogleID:  getString(p, "located_google_id"),
		Category:         getString(p, "category"),
		Subtypes:         getString(p, "subtypes"),
		Posts:            getNested(p, "posts"),
		ReviewsTags:      getStringList(p, "reviews_tags"),
		Rating:           getFloatFlexible(p, "rating"),
		ReviewsCount:     getInt64Flexible(p, "reviews"),
		PhotosCount:      getInt64Flexible(p, "photos_count"),
		CID:              getString(p, "cid"),
		ReviewsLink:      getString(p, "reviews_link"),
		ReviewsID:        getString(p, "reviews_id"),
		Photo:            getString(p, "photo"),
		StreetView:       getString(p, "street_view"),

		WorkingHoursOldFormat: getString(p, "working_hours_old_format"),
		WorkingHours:          getHours(p, "working_hours"),
		OtherHours:            getNested(p, "other_hours"),
		BusinessStatus:        getString(p, "business_status"),
		About:                 getNested(p, "about"),
		Range:                 getString(p, "range"),

		ReviewsPerScore:  getNested(p, "reviews_per_score"),
		ReviewsPerScore1: getInt64Flexible(p, "reviews_per_score_1"),
		ReviewsPerScore2: getInt64Flexible(p, "reviews_per_score_2"),
		ReviewsPerScore3: getInt64Flexible(p, "reviews_per_score_3"),
		ReviewsPerScore4: getInt64Flexible(p, "reviews_per_score_4"),
		ReviewsPerScore5: getInt64Flexible(p, "reviews_per_score_5"),

		ReservationLinks:       getNested(p, "reservation_links"),
		BookingAppointmentLink: getString(p, "booking_appointment_link"),
		MenuLink:               getString(p, "menu_link"),
		OrderLinks:             getNested(p, "order_links"),
		OwnerID:                getString(p, "owner_id"),
		Verified:               getBool(p, "verified"),
		OwnerTitle:             getString(p, "owner_title"),
		OwnerLink:              getString(p, "owner_link"),
		LocationLink:           getString(p, "location_link"),
		LocationReviewsLink:    getString(p, "location_reviews_link"),
	}
}

/********** review mapper **********/

// MapReview narrows one entry of a business's reviews_data. The timestamp is
// parsed from review_datetime_utc; an unparseable value is simply left out.
func MapReview(r map[string]any, placeID string) domain.Review {
	return domain.Review{
		ReviewID:        deref(getString(r, "review_id")),
		BusinessPlaceID: placeID,

		GoogleID:           getString(r, "google_id"),
		ReviewPaginationID: getString(r, "review_pagination_id"),
		AuthorLink:         getString(r, "author_link"),
		AuthorTitle:        getString(r, "author_title"),
		AuthorID:           getString(r, "author_id"),
		AuthorImage:        getString(r, "author_image"),
		AuthorReviewsCount: getInt64Flexible(r, "author_reviews_count"),
		AuthorRatingsCount: getInt64Flexible(r, "author_ratings_count"),
		ReviewText:         getString(r, "review_text"),
		ReviewImgURLs:      getStringList(r, "review_img_urls"),
		ReviewImgURL:       getString(r, "review_img_url"),
		ReviewQuestions:    getQuestions(r, "review_questions"),
		ReviewPhotoIDs:     getStringList(r, "review_photo_ids"),

		OwnerAnswer:                     getString(r, "owner_answer"),
		OwnerAnswerTimestamp:            getInt64Flexible(r, "owner_answer_timestamp"),
		OwnerAnswerTimestampDatetimeUTC: getString(r, "owner_answer_timestamp_datetime_utc"),

		ReviewLink:        getString(r, "review_link"),
		ReviewRating:      getFloatFlexible(r, "review_rating"),
		ReviewTimestamp:   getInt64Flexible(r, "review_timestamp"),
		ReviewDatetimeUTC: parseReviewTime(r, "review_datetime_utc"),
		ReviewLikes:       getInt64Flexible(r, "review_likes"),
		ReviewsID:         getString(r, "reviews_id"),
		Replies:           getNested(r, "replies"),
	}
}

func parseReviewTime(m map[string]any, path string) *time.Time {
	s, ok := lookupAny(m, path).(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.ParseInLocation(domain.ReviewTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// reviewsOf returns the nested reviews_data list, skipping non-object entries.
func reviewsOf(p map[string]any) []map[string]any {
	raw, ok := p["reviews_data"].([]any)
	if !ok {
		if typed, ok := p["reviews_data"].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
