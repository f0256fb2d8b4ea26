package model

type ChannelID = string

type Channel struct {
	ID   ChannelID `json:"id" bson:"channel_id"`
	Name string    `json:"name" bson:"name"`
}

type Member struct {
	User User `json:"user" bson:"user"`
}

// Snapshot is one delivery of LoadSnapshot.
type Snapshot struct {
	Metadata ChangeMetadata `json:"metadata"`
	Channel  Channel        `json:"channel"`
	Messages []Message      `json:"messages"`
	Members  []Member       `json:"members"`
	Watchers []Member       `json:"watchers"`
}
