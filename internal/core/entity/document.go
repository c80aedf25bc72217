package entity

import (
	"context"
	"time"
	"unicode/utf8"

	"landedcost/internal/core/apperror"
)

// MaxCommentLength bounds Document.Comment in characters.
const MaxCommentLength = 1000

// Document is the numbered, dated header shared by business documents.
type Document struct {
	BaseDocument

	// Number is assigned on create from the numerator, e.g. PO-2026-00001.
	Number  string    `db:"number" json:"number"`
	Date    time.Time `db:"date" json:"date"`
	Comment string    `db:"comment" json:"comment,omitempty"`
}

// NewDocument returns an unnumbered document dated now.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if utf8.RuneCountInString(d.Comment) > MaxCommentLength {
		return apperror.NewValidation("comment is too long").
			WithDetail("field", "comment").
			WithDetail("max", MaxCommentLength)
	}
	return nil
}
