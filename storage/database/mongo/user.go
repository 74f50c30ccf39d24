package mongorepos

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/mitihani/core/user"
)

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) *userRepository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

// trapNoDocumentsErr maps mongo "no documents" err to user.ErrNotFound
func (repo *userRepository) trapNoDocumentsErr(err error, msg string) error {
	if err == mongo.ErrNoDocuments {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query["_id"] = bson.M{"$nin": ids}
	}

	var existing user.User
	err := repo.coll.FindOne(ctx, query).Decode(&existing)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if existing.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	if _, err := repo.coll.InsertOne(ctx, usr); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	existing, err := repo.GetUserByUsernameOrEmail(ctx, usr.Username)
	if err != nil {
		if err == user.ErrNotFound {
			if usr.CreatedAt.IsZero() {
				usr.CreatedAt = time.Now().UTC()
				usr.UpdatedAt = usr.CreatedAt
			}
			return repo.CreateUser(ctx, usr)
		}
		return user.User{}, err
	}
	usr.ID = existing.ID
	usr.UpdatedAt = time.Now().UTC()
	return repo.UpdateUser(ctx, usr, usr.IsActive)
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	cursor, err := repo.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, bson.M{"_id": id}, "finding user by ID")
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, bson.M{"username": username}, "finding user by username")
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, bson.M{"email": email}, "finding user by email")
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": username},
	}}
	return repo.getUser(ctx, query, "finding user by username or email")
}

func (repo *userRepository) GetUserByReferralCode(ctx context.Context, code string) (user.User, error) {
	return repo.getUser(ctx, bson.M{"referralCode": code}, "finding user by referral code")
}

func (repo *userRepository) getUser(ctx context.Context, query bson.M, msg string) (user.User, error) {
	var usr user.User
	if err := repo.coll.FindOne(ctx, query).Decode(&usr); err != nil {
		return user.User{}, repo.trapNoDocumentsErr(err, msg)
	}
	return usr, nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			search := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
			query["$or"] = bson.A{
				bson.M{"name": search},
				bson.M{"username": search},
				bson.M{"email": search},
			}
		}
		if len(filter.Roles) > 0 {
			prefixes := make(bson.A, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				prefixes = append(prefixes, bson.M{"roles": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(role)}})
			}
			query["$and"] = bson.A{bson.M{"$or": prefixes}}
		}
		if filter.IsActive != nil {
			query["isActive"] = *filter.IsActive
		}
		createdAt := bson.M{}
		if !filter.CreatedFrom.IsZero() {
			createdAt["$gte"] = filter.CreatedFrom.UTC()
		}
		if !filter.CreatedTo.IsZero() {
			createdAt["$lte"] = filter.CreatedTo.UTC()
		}
		if len(createdAt) > 0 {
			query["createdAt"] = createdAt
		}
	}

	cursor, err := repo.coll.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	set := bson.M{
		"name":      usr.Name,
		"username":  usr.Username,
		"email":     usr.Email,
		"updatedAt": usr.UpdatedAt.UTC(),
	}
	if usr.Roles != nil {
		set["roles"] = usr.Roles
	}
	if usr.PasswordHash != nil {
		set["passwordHash"] = usr.PasswordHash
	}
	if isActive != nil {
		set["isActive"] = *isActive
	}

	res := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": usr.ID}, bson.M{"$set": set})
	if err := res.Err(); err != nil {
		return user.User{}, repo.trapNoDocumentsErr(err, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) SetUserLastLogin(ctx context.Context, id string, t time.Time) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLogin": t.UTC()}})
	if err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (repo *userRepository) QueryUsersCreatedBetween(ctx context.Context, from, to time.Time) ([]user.User, error) {
	query := bson.M{"createdAt": bson.M{"$gte": from.UTC(), "$lt": to.UTC()}}
	cursor, err := repo.coll.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by signup date")
	}
	users := make([]user.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}
	return users, nil
}

func (repo *userRepository) AddUserCredits(ctx context.Context, credits map[string]int) error {
	if len(credits) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(credits))
	for id, amount := range credits {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$inc": bson.M{"credits": amount}}))
	}
	if _, err := repo.coll.BulkWrite(ctx, models); err != nil {
		return errors.Wrap(err, "granting user credits")
	}
	return nil
}
