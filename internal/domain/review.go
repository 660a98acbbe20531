package domain

import "time"

// ReviewTimeLayout is the provider's review_datetime_utc format (MM/DD/YYYY HH:MM:SS).
const ReviewTimeLayout = "01/02/2006 15:04:05"

// Review is one Google Maps review tied to a Business by place id.
type Review struct {
	ReviewID        string // required, unique
	BusinessPlaceID string

	GoogleID           *string
	ReviewPaginationID *string
	AuthorLink         *string
	AuthorTitle        *string
	AuthorID           *string
	AuthorImage        *string
	AuthorReviewsCount *int64
	AuthorRatingsCount *int64
	ReviewText         *string
	ReviewImgURLs      StringList
	ReviewImgURL       *string
	ReviewQuestions    Questions
	ReviewPhotoIDs     StringList

	OwnerAnswer                     *string
	OwnerAnswerTimestamp            *int64
	OwnerAnswerTimestampDatetimeUTC *string

	ReviewLink        *string
	ReviewRating      *float64
	ReviewTimestamp   *int64
	ReviewDatetimeUTC *time.Time
	ReviewLikes       *int64
	ReviewsID         *string
	Replies           Nested
}

type ReviewView struct {
	ReviewID          string     `db:"review_id" json:"review_id"`
	AuthorTitle       *string    `db:"author_title" json:"author_title,omitempty"`
	ReviewText        *string    `db:"review_text" json:"review_text,omitempty"`
	ReviewRating      *float64   `db:"review_rating" json:"review_rating,omitempty"`
	ReviewDatetimeUTC *time.Time `db:"review_datetime_utc" json:"review_datetime_utc,omitempty"`
	OwnerAnswer       *string    `db:"owner_answer" json:"owner_answer,omitempty"`
}

type ReviewsPage struct {
	Items []ReviewView `json:"items"`
}
