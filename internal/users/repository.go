package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/permission"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the document store collection holding accounts.
const CollectionName = "users"

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// collection is the subset of *mongo.Collection the repository needs.
type collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type document struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	FullName  string             `bson:"fullName"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Roles     []string           `bson:"roles"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// Repository reads and writes user documents.
type Repository struct {
	coll collection
	now  func() time.Time
}

// NewRepository uses the users collection of db.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the unique email index and the createdAt index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// FindByUsername looks an account up by email. Emails are matched exactly
// after trimming surrounding space.
func (r *Repository) FindByUsername(ctx context.Context, username string) (goTodo.UserRecord, error) {
	email := strings.TrimSpace(username)
	if email == "" {
		return goTodo.UserRecord{}, goTodo.ErrUserNotFound
	}

	var doc document
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return goTodo.UserRecord{}, goTodo.ErrUserNotFound
		}
		return goTodo.UserRecord{}, fmt.Errorf("find user: %w", err)
	}

	return goTodo.UserRecord{
		UserID:       doc.ID.Hex(),
		Username:     doc.Email,
		FullName:     doc.FullName,
		PasswordHash: doc.Password,
		Roles:        doc.Roles,
	}, nil
}

// UpdatePasswordHash replaces the stored digest of userID.
func (r *Repository) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", goTodo.ErrUserNotFound, err)
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"password": newHash, "updatedAt": r.now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return goTodo.ErrUserNotFound
	}
	return nil
}

// Create inserts an account and returns its ID. digest must already be a
// password hash. Roles default to USER.
func (r *Repository) Create(ctx context.Context, fullName, email, digest string, roles []string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || digest == "" {
		return "", errors.New("email and password digest are required")
	}
	if len(roles) == 0 {
		roles = []string{permission.RoleUser}
	}

	now := r.now().UTC()
	doc := document{
		ID:        primitive.NewObjectID(),
		FullName:  fullName,
		Email:     email,
		Password:  digest,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return doc.ID.Hex(), nil
}

var _ goTodo.UserProvider = (*Repository)(nil)
