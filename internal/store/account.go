package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is one linked manager (MCC) account. MCC is stored in digits-only
// canonical form and is unique across the collection. RefreshToken is present
// on every record past linking; AccessToken and ExpiredTime are regenerated
// on demand and always written together.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	GID          string             `bson:"gid,omitempty" json:"gid,omitempty"`
	Mail         string             `bson:"mail,omitempty" json:"mail,omitempty"`
	MCC          string             `bson:"mcc" json:"mcc"`
	RefreshToken string             `bson:"refresh_token,omitempty" json:"-"`
	AccessToken  string             `bson:"access_token,omitempty" json:"-"`
	ExpiredTime  int64              `bson:"expired_time,omitempty" json:"expired_time,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// LinkFields is the full credential set written when a MCC is (re)linked.
type LinkFields struct {
	GID          string
	Mail         string
	RefreshToken string
	AccessToken  string
	ExpiredTime  int64
}
