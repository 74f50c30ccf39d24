package exam

import (
	"time"

	"github.com/trezcool/mitihani/core"
	"github.com/trezcool/mitihani/core/rating"
)

// Moderation statuses. An exam is created pending and only moves via an
// explicit reviewer action; re-review requires the uploader to delete and
// resubmit.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Exam is an uploaded document and its moderation state. The descriptive
// fields are free-form; no referential integrity is enforced against the
// Courses/Teachers reference lists. FilePath is the stable storage key used
// to mint a fresh FileURL when the cached one may have expired.
type Exam struct {
	ID             string         `json:"id" bson:"_id,omitempty"`
	UserID         string         `json:"user_id" bson:"userId"`
	Title          string         `json:"title" bson:"title"`
	Course         string         `json:"course" bson:"course"`
	Teacher        string         `json:"teacher" bson:"teacher"`
	Cycle          string         `json:"cycle" bson:"cycle"`
	Unit           string         `json:"unit" bson:"unit"`
	Section        string         `json:"section" bson:"section"`
	SchoolTerm     string         `json:"school_term" bson:"schoolTerm"`
	Status         Status         `json:"status" bson:"status"`
	Downloads      int            `json:"downloads" bson:"downloads"`
	RatingsSummary rating.Summary `json:"ratings_summary" bson:"ratingsSummary"`
	FileURL        string         `json:"file_url" bson:"fileUrl"`
	FileName       string         `json:"file_name" bson:"fileName"`
	FilePath       string         `json:"-" bson:"filePath"`
	UploadDate     time.Time      `json:"upload_date" bson:"uploadDate"` // UTC
}

// NewExam contains information needed to upload a new Exam. The uploader
// identity comes from the authentication layer.
type NewExam struct {
	UserID     string `json:"-"`
	Title      string `json:"title" form:"title" validate:"required"`
	Course     string `json:"course" form:"course" validate:"required"`
	Teacher    string `json:"teacher" form:"teacher" validate:"required"`
	Cycle      string `json:"cycle" form:"cycle" validate:"required"`
	Unit       string `json:"unit" form:"unit"`
	Section    string `json:"section" form:"section"`
	SchoolTerm string `json:"school_term" form:"school_term"`
}

func (ne *NewExam) Validate() error {
	ne.Title = core.CleanString(ne.Title)
	ne.Course = core.CleanString(ne.Course)
	ne.Teacher = core.CleanString(ne.Teacher)
	ne.Cycle = core.CleanString(ne.Cycle)
	ne.Unit = core.CleanString(ne.Unit)
	ne.Section = core.CleanString(ne.Section)
	ne.SchoolTerm = core.CleanString(ne.SchoolTerm)
	return core.Validate.Struct(ne)
}

type QueryFilter struct {
	Search  string `query:"search"` // case-insensitive match on Title
	Course  string `query:"course"`
	Teacher string `query:"teacher"`
	Cycle   string `query:"cycle"`
	Status  Status `query:"status"`
	UserID  string `query:"user_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Course == "" && qf.Teacher == "" &&
		qf.Cycle == "" && qf.Status == "" && qf.UserID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Course = core.CleanString(qf.Course)
	qf.Teacher = core.CleanString(qf.Teacher)
	qf.Cycle = core.CleanString(qf.Cycle)
}
