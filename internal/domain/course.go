package domain

import (
	"time"

	"github.com/google/uuid"
)

// Course is a purchasable program. Price is in kobo.
type Course struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Durations   []string  `json:"duration"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseUpdate carries the optional fields of a partial course edit.
type CourseUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       *int64    `json:"price,omitempty"`
	Durations   *[]string `json:"duration,omitempty"`
	IsPublished *bool     `json:"is_published,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u CourseUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Price == nil && u.Durations == nil && u.IsPublished == nil
}

// EnrolledCourse is a course payment joined with its course.
type EnrolledCourse struct {
	CourseID      uuid.UUID     `json:"course_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Price         int64         `json:"price"`
	Durations     []string      `json:"duration"`
	AmountPaid    int64         `json:"amount_paid"`
	AmountPayable int64         `json:"amount_payable"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	LearningMode  LearningMode  `json:"learning_mode,omitempty"`
}
