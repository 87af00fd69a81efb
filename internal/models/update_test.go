package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDecodeProfileUpdateRejectsUnknownFields(t *testing.T) {
	for _, raw := range []string{
		`{"password":"x"}`,
		`{"username":"other"}`,
		`{"stats":{"headshots":3}}`,
		`{"created_at":"2020-01-01T00:00:00Z"}`,
	} {
		if _, err := DecodeProfileUpdate([]byte(raw)); err == nil {
			t.Fatalf("DecodeProfileUpdate(%s) expected error", raw)
		}
	}
}

func TestDecodeProfileUpdateRejectsWrongTypes(t *testing.T) {
	for _, raw := range []string{
		`{"xp":"fifty"}`,
		`{"level":1.5}`,
		`{"friends":[1,2]}`,
		`{"settings":[]}`,
		``,
	} {
		if _, err := DecodeProfileUpdate([]byte(raw)); err == nil {
			t.Fatalf("DecodeProfileUpdate(%q) expected error", raw)
		}
	}
}

func TestProfileUpdateFieldsOnlyProvided(t *testing.T) {
	upd, err := DecodeProfileUpdate([]byte(`{"xp":50,"stats":{"kills":3}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := upd.Fields()
	want := map[string]any{"xp": 50, "stats.kills": 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
}

func TestProfileUpdateValidate(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr string
	}{
		{`{}`, "no fields"},
		{`{"level":0}`, "level"},
		{`{"xp":-1}`, "xp"},
		{`{"vbucks":-5}`, "vbucks"},
		{`{"stats":{"deaths":-1}}`, "stats.deaths"},
		{`{"level":3,"xp":0}`, ""},
	}
	for _, tt := range tests {
		upd, err := DecodeProfileUpdate([]byte(tt.raw))
		if err != nil {
			t.Fatalf("decode %s: %v", tt.raw, err)
		}
		err = upd.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Fatalf("validate %s: %v", tt.raw, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("validate %s = %v, want error containing %q", tt.raw, err, tt.wantErr)
		}
	}
}

func TestProfileUpdateApplyLeavesOtherFields(t *testing.T) {
	acc := NewAccount("ana", "hash", "", time.Now())
	acc.Stats.Wins = 2

	upd, err := DecodeProfileUpdate([]byte(`{"xp":50,"stats":{"kills":1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	upd.Apply(acc)

	if acc.XP != 50 || acc.Stats.Kills != 1 {
		t.Fatalf("update not applied: %+v", acc)
	}
	if acc.Level != DefaultLevel || acc.VBucks != DefaultVBucks || acc.Stats.Wins != 2 {
		t.Fatalf("unrelated fields changed: %+v", acc)
	}
}

func TestProfileNeverContainsPassword(t *testing.T) {
	acc := NewAccount("ana", "$2a$10$secret", "a@example.com", time.Now())
	for _, v := range []any{acc, acc.Profile(), acc.SessionProfile(), acc.PublicProfile()} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(b), "secret") || strings.Contains(string(b), "password") {
			t.Fatalf("password leaked: %s", b)
		}
	}
}
