package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ProfileUpdate lists every account field a client may change. A nil field
// is left untouched; anything not listed here cannot be written.
type ProfileUpdate struct {
	Email     *string        `json:"email"`
	Level     *int           `json:"level"`
	XP        *int           `json:"xp"`
	VBucks    *int           `json:"vbucks"`
	Inventory []any          `json:"inventory"`
	Friends   []string       `json:"friends"`
	Stats     *StatsUpdate   `json:"stats"`
	Settings  map[string]any `json:"settings"`
}

// StatsUpdate changes individual stat counters.
type StatsUpdate struct {
	Kills   *int `json:"kills"`
	Deaths  *int `json:"deaths"`
	Wins    *int `json:"wins"`
	Matches *int `json:"matches"`
}

// UpdateRequest is the JSON body for POST /api/user/update.
type UpdateRequest struct {
	Username string          `json:"username"`
	Updates  json.RawMessage `json:"updates"`
}

// DecodeProfileUpdate strictly decodes an update document. Unknown keys and
// values of the wrong type are rejected.
func DecodeProfileUpdate(raw []byte) (ProfileUpdate, error) {
	var upd ProfileUpdate
	if len(bytes.TrimSpace(raw)) == 0 {
		return upd, errors.New("updates are required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		return upd, fmt.Errorf("decode updates: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return upd, errors.New("decode updates: trailing data")
	}
	return upd, nil
}

// Validate checks per-field ranges.
func (u ProfileUpdate) Validate() error {
	if len(u.Fields()) == 0 {
		return errors.New("no fields to update")
	}
	if u.Level != nil && *u.Level < 1 {
		return errors.New("level must be >= 1")
	}
	if err := nonNegative("xp", u.XP); err != nil {
		return err
	}
	if err := nonNegative("vbucks", u.VBucks); err != nil {
		return err
	}
	if s := u.Stats; s != nil {
		for _, f := range []struct {
			name string
			v    *int
		}{
			{"stats.kills", s.Kills},
			{"stats.deaths", s.Deaths},
			{"stats.wins", s.Wins},
			{"stats.matches", s.Matches},
		} {
			if err := nonNegative(f.name, f.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func nonNegative(name string, v *int) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

// Fields flattens the update into document paths suitable for a $set.
func (u ProfileUpdate) Fields() map[string]any {
	set := make(map[string]any)
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.Level != nil {
		set["level"] = *u.Level
	}
	if u.XP != nil {
		set["xp"] = *u.XP
	}
	if u.VBucks != nil {
		set["vbucks"] = *u.VBucks
	}
	if u.Inventory != nil {
		set["inventory"] = u.Inventory
	}
	if u.Friends != nil {
		set["friends"] = u.Friends
	}
	if s := u.Stats; s != nil {
		if s.Kills != nil {
			set["stats.kills"] = *s.Kills
		}
		if s.Deaths != nil {
			set["stats.deaths"] = *s.Deaths
		}
		if s.Wins != nil {
			set["stats.wins"] = *s.Wins
		}
		if s.Matches != nil {
			set["stats.matches"] = *s.Matches
		}
	}
	if u.Settings != nil {
		set["settings"] = u.Settings
	}
	return set
}

// Apply merges the update into an in-memory account.
func (u ProfileUpdate) Apply(a *Account) {
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.Level != nil {
		a.Level = *u.Level
	}
	if u.XP != nil {
		a.XP = *u.XP
	}
	if u.VBucks != nil {
		a.VBucks = *u.VBucks
	}
	if u.Inventory != nil {
		a.Inventory = u.Inventory
	}
	if u.Friends != nil {
		a.Friends = u.Friends
	}
	if s := u.Stats; s != nil {
		setInt(&a.Stats.Kills, s.Kills)
		setInt(&a.Stats.Deaths, s.Deaths)
		setInt(&a.Stats.Wins, s.Wins)
		setInt(&a.Stats.Matches, s.Matches)
	}
	if u.Settings != nil {
		a.Settings = u.Settings
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
