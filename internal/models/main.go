// Package models defines the core data structures for users, their
// relatives and the resources they own.
package models

import (
	"fmt"
	"time"
)

// User represents an account of the companion application.
type User struct {
	// ID is the unique identifier for the user (a chosen login or a WeChat openid).
	ID string
	// PasswordHash is the bcrypt digest of the user's password.
	PasswordHash []byte
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// Well-known metadata keys of a user document.
const (
	MetaName     = "name"
	MetaAvatar   = "avatar"
	MetaBio      = "bio"
	MetaEmail    = "email"
	MetaTel      = "tel"
	MetaLocation = "location"
)

// Profile is the public part of a user's metadata.
type Profile struct {
	ID     string  `json:"id"`
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
	Bio    *string `json:"bio"`
}

// Relation links a user to one of their relatives.
type Relation struct {
	// ID is the unique identifier for the relation.
	ID int64 `json:"id"`
	// FromUserID owns the relation.
	FromUserID string `json:"from_user_id"`
	// ToUserID is the relative.
	ToUserID string `json:"to_user_id"`
	// Relation is a free-form label ("daughter", "neighbour", ...).
	Relation string `json:"relation"`
}

// Grant is a permission edge: Grantee may act with Grantor's authority.
type Grant struct {
	Grantor string
	Grantee string
}

// RelationView is a relation enriched with the relative's public profile.
type RelationView struct {
	ID       int64   `json:"id"`
	ToUserID string  `json:"to_user_id"`
	Name     *string `json:"name"`
	Avatar   *string `json:"avatar"`
	Relation string  `json:"relation"`
}

// RelativeView is a RelationView with what the relative keeps in the app.
// Favorites and Activities are null when the relative has not granted the
// reader its authority.
type RelativeView struct {
	RelationView
	Favorites  []FavoriteView `json:"favorites"`
	Activities []Activity     `json:"activities"`
}

// Favorite is an article bookmarked by a user.
type Favorite struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	TimeStamp time.Time `json:"timeStamp"`
	ArticleID int64     `json:"articleId"`
}

// FavoriteView is a favorite with the article details resolved, when available.
type FavoriteView struct {
	ID        int64           `json:"id"`
	TimeStamp time.Time       `json:"timeStamp"`
	ArticleID int64           `json:"articleId"`
	Details   *ArticleDetails `json:"details"`
}

// Reminder is a note with an optional notification time.
type Reminder struct {
	ID               int64      `json:"id"`
	UserID           string     `json:"user_id"`
	Creator          *string    `json:"creator"`
	Content          string     `json:"content"`
	CreationTime     time.Time  `json:"creation_time"`
	ModificationTime time.Time  `json:"modification_time"`
	NotificationTime *time.Time `json:"notification_time"`
}

// Progress is the state of an activity.
type Progress string

const (
	ProgressTodo     Progress = "todo"
	ProgressDoing    Progress = "doing"
	ProgressDone     Progress = "done"
	ProgressCanceled Progress = "canceled"
)

// Valid reports whether p is one of the known states.
func (p Progress) Valid() bool {
	switch p {
	case ProgressTodo, ProgressDoing, ProgressDone, ProgressCanceled:
		return true
	}
	return false
}

// UnmarshalText rejects unknown states. An empty value decodes to the zero
// Progress, which creation treats as ProgressTodo.
func (p *Progress) UnmarshalText(b []byte) error {
	v := Progress(b)
	if v != "" && !v.Valid() {
		return fmt.Errorf("unknown progress %q", string(b))
	}
	*p = v
	return nil
}

// Activity is a planned or ongoing event in a user's day.
type Activity struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Creator     *string   `json:"creator"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Situation   Progress  `json:"situation"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}
