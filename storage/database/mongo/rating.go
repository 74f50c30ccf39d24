package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/mitihani/core/rating"
)

type ratingRepository struct {
	coll  *mongo.Collection
	exams *mongo.Collection // summary denormalization target
}

var _ rating.Repository = (*ratingRepository)(nil) // interface compliance check

func NewRatingRepository(db *mongo.Database) *ratingRepository {
	return &ratingRepository{
		coll:  db.Collection(ratingsCollection),
		exams: db.Collection(examsCollection),
	}
}

// trapNoDocumentsErr maps mongo "no documents" err to rating.ErrNotFound
func (repo *ratingRepository) trapNoDocumentsErr(err error, msg string) error {
	if err == mongo.ErrNoDocuments {
		return rating.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *ratingRepository) CreateRating(ctx context.Context, r rating.Rating) (rating.Rating, error) {
	r.ID = uuid.New().String()
	if _, err := repo.coll.InsertOne(ctx, r); err != nil {
		return rating.Rating{}, errors.Wrap(err, "inserting rating")
	}
	return r, nil
}

func (repo *ratingRepository) GetRatingByID(ctx context.Context, id string) (rating.Rating, error) {
	var r rating.Rating
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return rating.Rating{}, repo.trapNoDocumentsErr(err, "finding rating by ID")
	}
	return r, nil
}

func (repo *ratingRepository) GetExamRatings(ctx context.Context, examID string) ([]rating.Rating, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := repo.coll.Find(ctx, bson.M{"examId": examID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying exam ratings")
	}
	ratings := make([]rating.Rating, 0)
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, errors.Wrap(err, "decoding exam ratings")
	}
	return ratings, nil
}

func (repo *ratingRepository) GetRatingByUser(ctx context.Context, examID, userID string) (rating.Rating, error) {
	var r rating.Rating
	err := repo.coll.FindOne(ctx, bson.M{"examId": examID, "userId": userID}).Decode(&r)
	if err != nil {
		return rating.Rating{}, repo.trapNoDocumentsErr(err, "finding rating by user")
	}
	return r, nil
}

func (repo *ratingRepository) UpdateRating(ctx context.Context, id string, value int, comment string, updatedAt time.Time) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"rating": value, "comment": comment, "updatedAt": updatedAt},
	})
	if err != nil {
		return errors.Wrap(err, "updating rating")
	}
	if res.MatchedCount == 0 {
		return rating.ErrNotFound
	}
	return nil
}

func (repo *ratingRepository) DeleteRating(ctx context.Context, id string) error {
	res, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting rating")
	}
	if res.DeletedCount == 0 {
		return rating.ErrNotFound
	}
	return nil
}

func (repo *ratingRepository) IncrementHelpful(ctx context.Context, id string) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"helpful": 1}})
	if err != nil {
		return errors.Wrap(err, "incrementing helpful counter")
	}
	if res.MatchedCount == 0 {
		return rating.ErrNotFound
	}
	return nil
}

func (repo *ratingRepository) SetExamSummary(ctx context.Context, examID string, summary rating.Summary) error {
	res, err := repo.exams.UpdateOne(ctx, bson.M{"_id": examID}, bson.M{
		"$set": bson.M{"ratingsSummary": summary},
	})
	if err != nil {
		return errors.Wrap(err, "setting exam summary")
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("exam %s not found", examID)
	}
	return nil
}
