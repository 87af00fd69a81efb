package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account defaults applied at registration.
const (
	DefaultLevel  = 1
	DefaultVBucks = 1000
)

// Stats are the lifetime match counters of an account.
type Stats struct {
	Kills   int `json:"kills"   bson:"kills"`
	Deaths  int `json:"deaths"  bson:"deaths"`
	Wins    int `json:"wins"    bson:"wins"`
	Matches int `json:"matches" bson:"matches"`
}

// Account is a player account stored in the MongoDB users collection.
type Account struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Username  string             `json:"username"   bson:"username"`
	Password  string             `json:"-"          bson:"password"` // bcrypt hash, never serialize
	Email     string             `json:"email"      bson:"email,omitempty"`
	Level     int                `json:"level"      bson:"level"`
	XP        int                `json:"xp"         bson:"xp"`
	VBucks    int                `json:"vbucks"     bson:"vbucks"`
	Inventory []any              `json:"inventory"  bson:"inventory"`
	Friends   []string           `json:"friends"    bson:"friends"`
	Stats     Stats              `json:"stats"      bson:"stats"`
	Settings  map[string]any     `json:"settings"   bson:"settings,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// NewAccount returns an account with registration defaults.
func NewAccount(username, hashedPw, email string, now time.Time) *Account {
	return &Account{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Password:  hashedPw,
		Email:     email,
		Level:     DefaultLevel,
		VBucks:    DefaultVBucks,
		Inventory: []any{},
		Friends:   []string{},
		CreatedAt: now.UTC(),
	}
}

// PublicProfile is the projection returned on registration.
type PublicProfile struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
	VBucks   int    `json:"vbucks"`
}

// SessionProfile is the projection returned on login.
type SessionProfile struct {
	Username  string   `json:"username"`
	Level     int      `json:"level"`
	XP        int      `json:"xp"`
	VBucks    int      `json:"vbucks"`
	Inventory []any    `json:"inventory"`
	Friends   []string `json:"friends"`
	Stats     Stats    `json:"stats"`
}

// Profile is the full readable view of an account. Fields are listed
// explicitly so the password hash can never leak through it.
type Profile struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email,omitempty"`
	Level     int            `json:"level"`
	XP        int            `json:"xp"`
	VBucks    int            `json:"vbucks"`
	Inventory []any          `json:"inventory"`
	Friends   []string       `json:"friends"`
	Stats     Stats          `json:"stats"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (a *Account) PublicProfile() PublicProfile {
	return PublicProfile{Username: a.Username, Level: a.Level, VBucks: a.VBucks}
}

func (a *Account) SessionProfile() SessionProfile {
	return SessionProfile{
		Username:  a.Username,
		Level:     a.Level,
		XP:        a.XP,
		VBucks:    a.VBucks,
		Inventory: nonNilItems(a.Inventory),
		Friends:   nonNilStrings(a.Friends),
		Stats:     a.Stats,
	}
}

func (a *Account) Profile() *Profile {
	return &Profile{
		ID:        a.ID.Hex(),
		Username:  a.Username,
		Email:     a.Email,
		Level:     a.Level,
		XP:        a.XP,
		VBucks:    a.VBucks,
		Inventory: nonNilItems(a.Inventory),
		Friends:   nonNilStrings(a.Friends),
		Stats:     a.Stats,
		Settings:  a.Settings,
		CreatedAt: a.CreatedAt,
	}
}

func nonNilItems(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// RegisterRequest is the JSON body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest is the JSON body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is returned by POST /api/register.
type RegisterResponse struct {
	Token string        `json:"token"`
	User  PublicProfile `json:"user"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	Token string         `json:"token"`
	User  SessionProfile `json:"user"`
}
