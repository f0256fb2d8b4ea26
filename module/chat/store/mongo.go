package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

const (
	channelsCollection = "chat_channels"
	messagesCollection = "chat_messages"
)

type messageDoc struct {
	ChannelID     model.ChannelID `bson:"channel_id"`
	model.Message `bson:",inline"`
	Seq           int64 `bson:"seq"`
}

// Mongo stores channels and messages in two collections; messages are
// unique on (channel_id, message_id).
type Mongo struct {
	channels *mongo.Collection
	messages *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		channels: db.Collection(channelsCollection),
		messages: db.Collection(messagesCollection),
	}
}

// EnsureIndexes creates the unique keys Append relies on for idempotency.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.channels.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errs.WrapMsg(err, "create channel index")
	}
	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "channel_id", Value: 1}, {Key: "seq", Value: 1}},
		},
	})
	return errs.WrapMsg(err, "create message indexes")
}

func (s *Mongo) EnsureChannel(ctx context.Context, ch model.Channel) error {
	update := bson.M{"$setOnInsert": bson.M{"channel_id": ch.ID}}
	if ch.Name != "" {
		update["$set"] = bson.M{"name": ch.Name}
	}
	_, err := s.channels.UpdateOne(ctx,
		bson.M{"channel_id": ch.ID},
		update,
		options.Update().SetUpsert(true),
	)
	return errs.WrapMsg(err, "mongo ensure channel", "channel", ch.ID)
}

func (s *Mongo) Load(ctx context.Context, channelID model.ChannelID) (History, error) {
	var ch model.Channel
	err := s.channels.FindOne(ctx, bson.M{"channel_id": channelID}).Decode(&ch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return History{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	if err != nil {
		return History{}, errs.WrapMsg(err, "mongo find channel", "channel", channelID)
	}

	cur, err := s.messages.Find(ctx,
		bson.M{"channel_id": channelID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return History{}, errs.WrapMsg(err, "mongo find messages", "channel", channelID)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return History{}, errs.WrapMsg(err, "mongo decode messages", "channel", channelID)
	}
	h := History{Channel: ch, Messages: make([]model.Message, 0, len(docs))}
	for _, d := range docs {
		h.Messages = append(h.Messages, d.Message)
	}
	return h, nil
}

func (s *Mongo) Append(ctx context.Context, channelID model.ChannelID, msg model.Message) error {
	n, err := s.channels.CountDocuments(ctx, bson.M{"channel_id": channelID})
	if err != nil {
		return errs.WrapMsg(err, "mongo count channel", "channel", channelID)
	}
	if n == 0 {
		return ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	doc := messageDoc{ChannelID: channelID, Message: msg, Seq: time.Now().UnixNano()}
	_, err = s.messages.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "message_id": msg.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return errs.WrapMsg(err, "mongo append", "channel", channelID, "message", msg.ID)
}

func (s *Mongo) Remove(ctx context.Context, channelID model.ChannelID, msgID model.MessageID) error {
	_, err := s.messages.DeleteOne(ctx, bson.M{"channel_id": channelID, "message_id": msgID})
	return errs.WrapMsg(err, "mongo remove", "channel", channelID, "message", msgID)
}

func (s *Mongo) Rename(ctx context.Context, channelID model.ChannelID, name string) (model.Channel, error) {
	res, err := s.channels.UpdateOne(ctx,
		bson.M{"channel_id": channelID},
		bson.M{"$set": bson.M{"name": name}},
	)
	if err != nil {
		return model.Channel{}, errs.WrapMsg(err, "mongo rename", "channel", channelID)
	}
	if res.MatchedCount == 0 {
		return model.Channel{}, ErrChannelNotFound.WrapMsg("", "channel", channelID)
	}
	return model.Channel{ID: channelID, Name: name}, nil
}
