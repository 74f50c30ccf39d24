package rating

import (
	"strconv"
	"time"

	"github.com/trezcool/mitihani/core"
)

// Rating is one user's opinion of one exam. UserName and UserEmail are a
// snapshot of the author at creation time; they are not re-synced if the
// author's profile later changes.
type Rating struct {
	ID        string     `json:"id" bson:"_id,omitempty"`
	ExamID    string     `json:"exam_id" bson:"examId"`
	UserID    string     `json:"user_id" bson:"userId"`
	UserName  string     `json:"user_name" bson:"userName"`
	UserEmail string     `json:"user_email" bson:"userEmail"`
	Value     int        `json:"rating" bson:"rating"`
	Comment   string     `json:"comment" bson:"comment"`
	Helpful   int        `json:"helpful" bson:"helpful"`
	CreatedAt time.Time  `json:"created_at" bson:"createdAt"` // UTC
	UpdatedAt *time.Time `json:"updated_at,omitempty" bson:"updatedAt,omitempty"`
}

// Summary is the denormalized aggregate persisted onto an exam document for
// fast display. It is never the source of truth: it is fully recomputable
// from the live Rating records at any time.
type Summary struct {
	Average      float64        `json:"average" bson:"average"`
	Count        int            `json:"count" bson:"count"`
	Distribution map[string]int `json:"distribution" bson:"distribution"` // star value ("5".."1") -> count
}

func zeroDistribution() map[string]int {
	return map[string]int{"5": 0, "4": 0, "3": 0, "2": 0, "1": 0}
}

// Summarize computes the aggregate of a full set of ratings from scratch.
// A full recompute (rather than incremental maintenance) cannot drift from
// its source records under partial failures.
func Summarize(ratings []Rating) Summary {
	summary := Summary{Distribution: zeroDistribution()}
	if len(ratings) == 0 {
		return summary
	}

	var total int
	for _, r := range ratings {
		total += r.Value
		summary.Distribution[strconv.Itoa(r.Value)]++
	}
	summary.Count = len(ratings)
	summary.Average = core.Round2(float64(total) / float64(summary.Count))
	return summary
}

// NewRating contains information needed to rate an exam. The author identity
// fields are supplied by the authentication layer, not by the request body.
type NewRating struct {
	ExamID    string `json:"-"`
	UserID    string `json:"-"`
	UserName  string `json:"-"`
	UserEmail string `json:"-"`
	Value     int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"required"`
}

func (nr *NewRating) Validate() error {
	nr.Comment = core.CleanString(nr.Comment)
	return core.Validate.Struct(nr)
}

// UpdateRating defines what information may be provided to edit an existing
// Rating; authorship and the helpful counter cannot be altered.
type UpdateRating struct {
	Value   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

func (ur *UpdateRating) Validate() error {
	ur.Comment = core.CleanString(ur.Comment)
	return core.Validate.Struct(ur)
}
