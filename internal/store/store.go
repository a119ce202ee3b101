package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const accountsCollection = "accounts"

// ErrNotFound is returned when no account matches the lookup key.
var ErrNotFound = errors.New("account not found")

// Store persists Account records in MongoDB.
type Store struct {
	database *mongo.Database
}

func New(database *mongo.Database) *Store {
	s := &Store{database: database}
	s.ensureIndexes()
	return s
}

func (s *Store) collection() *mongo.Collection {
	return s.database.Collection(accountsCollection)
}

// ensureIndexes enforces one record per MCC and keeps the listing sort cheap.
func (s *Store) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mcc", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	if _, err := s.collection().Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn().Err(err).Msg("create account indexes failed")
	}
}

// FindByMCC looks an account up by its canonical MCC id.
func (s *Store) FindByMCC(ctx context.Context, mcc string) (*Account, error) {
	var account Account
	err := s.collection().FindOne(ctx, bson.M{"mcc": mcc}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find account %s: %w", mcc, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", mcc, err)
	}
	return &account, nil
}

// UpsertByMCC writes the full credential set for one MCC, creating the record
// on first link and overwriting tokens and identity on relink. This is the
// only write path that may create a record.
func (s *Store) UpsertByMCC(ctx context.Context, mcc string, fields LinkFields) (*Account, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"mcc":           mcc,
			"gid":           fields.GID,
			"mail":          fields.Mail,
			"refresh_token": fields.RefreshToken,
			"access_token":  fields.AccessToken,
			"expired_time":  fields.ExpiredTime,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var account Account
	if err := s.collection().FindOneAndUpdate(ctx, bson.M{"mcc": mcc}, update, opts).Decode(&account); err != nil {
		return nil, fmt.Errorf("upsert account %s: %w", mcc, err)
	}
	return &account, nil
}

// UpdateTokens replaces the access token and its expiry as one unit, leaving
// every other field untouched.
func (s *Store) UpdateTokens(ctx context.Context, id primitive.ObjectID, accessToken string, expiredTime int64) error {
	update := bson.M{
		"$set": bson.M{
			"access_token": accessToken,
			"expired_time": expiredTime,
			"updated_at":   time.Now().UTC(),
		},
	}

	res, err := s.collection().UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update tokens %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update tokens %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// ListQuery selects a page of accounts, optionally narrowed by a
// case-insensitive search over MCC id and owner mail.
type ListQuery struct {
	Search string
	Page   int
	Limit  int
}

func (q ListQuery) normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	return q
}

func (q ListQuery) filter() bson.M {
	if q.Search == "" {
		return bson.M{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"mcc": pattern},
		bson.M{"mail": pattern},
	}}
}

// ListResult is one page of accounts plus pagination totals.
type ListResult struct {
	Accounts   []*Account
	Page       int
	Limit      int
	Total      int64
	TotalPages int
}

// List returns accounts newest first. Secrets are excluded by projection so a
// listing can never leak tokens.
func (s *Store) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	query = query.normalized()
	filter := query.filter()

	total, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((query.Page - 1) * query.Limit)).
		SetLimit(int64(query.Limit)).
		SetProjection(bson.M{"refresh_token": 0, "access_token": 0})

	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	accounts := make([]*Account, 0, query.Limit)
	for cursor.Next(ctx) {
		var account Account
		if err := cursor.Decode(&account); err != nil {
			return nil, fmt.Errorf("list accounts: decode: %w", err)
		}
		accounts = append(accounts, &account)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: cursor: %w", err)
	}

	return &ListResult{
		Accounts:   accounts,
		Page:       query.Page,
		Limit:      query.Limit,
		Total:      total,
		TotalPages: totalPages(total, query.Limit),
	}, nil
}

// Delete removes one account permanently, matched by record id when the key
// parses as an ObjectID hex, otherwise by MCC. The removed record is returned
// so callers can report its identity.
func (s *Store) Delete(ctx context.Context, idOrMCC string) (*Account, error) {
	filter := deleteFilter(idOrMCC)

	var account Account
	err := s.collection().FindOneAndDelete(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("delete account %s: %w", idOrMCC, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete account %s: %w", idOrMCC, err)
	}
	return &account, nil
}

func deleteFilter(idOrMCC string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(idOrMCC); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"mcc": idOrMCC}
}

func totalPages(total int64, limit int) int {
	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages < 1 {
		pages = 1
	}
	return pages
}
