package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the subset of a user profile the debate server reads.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	AvatarURL   string             `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
