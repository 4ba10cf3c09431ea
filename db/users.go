package db

import (
	"context"
	"errors"

	"debatehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserDirectory resolves display names from the users collection.
type UserDirectory struct {
	users *mongo.Collection
}

func NewUserDirectory(database *mongo.Database) *UserDirectory {
	return &UserDirectory{users: database.Collection("users")}
}

// DisplayName looks the user up by email first, then by object id. An
// unknown user yields an empty name and no error.
func (d *UserDirectory) DisplayName(ctx context.Context, userID, email string) (string, error) {
	var user models.User
	if email != "" {
		err := d.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if err == nil {
			return user.DisplayName, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return "", err
		}
	}
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", nil
	}
	err = d.users.FindOne(ctx, bson.M{"_id": objectID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.DisplayName, nil
}
