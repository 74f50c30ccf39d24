package mongorepos

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/mitihani/core/exam"
)

// collections
const (
	usersCollection   = "users"
	examsCollection   = "exams"
	ratingsCollection = "ratings"
)

type examRepository struct {
	coll *mongo.Collection
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *mongo.Database) *examRepository {
	return &examRepository{coll: db.Collection(examsCollection)}
}

// trapNoDocumentsErr maps mongo "no documents" err to exam.ErrNotFound
func (repo *examRepository) trapNoDocumentsErr(err error, msg string) error {
	if err == mongo.ErrNoDocuments {
		return exam.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *examRepository) CreateExam(ctx context.Context, ex exam.Exam) (exam.Exam, error) {
	ex.ID = uuid.New().String()
	if _, err := repo.coll.InsertOne(ctx, ex); err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return ex, nil
}

func (repo *examRepository) GetExamByID(ctx context.Context, id string) (exam.Exam, error) {
	var ex exam.Exam
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ex); err != nil {
		return exam.Exam{}, repo.trapNoDocumentsErr(err, "finding exam by ID")
	}
	return ex, nil
}

func (repo *examRepository) FilterExams(ctx context.Context, filter *exam.QueryFilter) ([]exam.Exam, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			query["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		}
		if filter.Course != "" {
			query["course"] = filter.Course
		}
		if filter.Teacher != "" {
			query["teacher"] = filter.Teacher
		}
		if filter.Cycle != "" {
			query["cycle"] = filter.Cycle
		}
		if filter.Status != "" {
			query["status"] = filter.Status
		}
		if filter.UserID != "" {
			query["userId"] = filter.UserID
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	cursor, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]exam.Exam, 0)
	if err := cursor.All(ctx, &exams); err != nil {
		return nil, errors.Wrap(err, "decoding exams")
	}
	return exams, nil
}

func (repo *examRepository) UpdateExamStatus(ctx context.Context, id string, status exam.Status) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return errors.Wrap(err, "updating exam status")
	}
	if res.MatchedCount == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo *examRepository) IncrementDownloads(ctx context.Context, id string) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"downloads": 1}})
	if err != nil {
		return errors.Wrap(err, "incrementing download counter")
	}
	if res.MatchedCount == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo *examRepository) SetFileURL(ctx context.Context, id, url string) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"fileUrl": url}})
	if err != nil {
		return errors.Wrap(err, "caching exam file URL")
	}
	if res.MatchedCount == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo *examRepository) DeleteExam(ctx context.Context, id string) error {
	if _, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return nil
}
