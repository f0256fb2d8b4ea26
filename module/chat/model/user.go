package model

import "AirChat/tools/ids"

type UserID = string

// User identity is ID; Name is display only.
type User struct {
	ID   UserID `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

func NewUser(name string) User {
	return User{ID: ids.UUID(), Name: name}
}

func (u User) Equal(o User) bool { return u.ID == o.ID }

func (u User) IsZero() bool { return u.ID == "" }
