package names_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/schemagate/schemagate/domain/names"
)

func TestValidClassName(t *testing.T) {
	tests := []struct {
		name  string
		class string
		want  bool
	}{
		{"plain identifier", "Game", true},
		{"lower case start", "game", true},
		{"with digits and underscores", "Game_v2", true},
		{"system class", "_User", true},
		{"system class role", "_Role", true},
		{"join table", "_Join:players:Game", true},
		{"join table to system class", "_Join:friends:_User", true},
		{"unknown underscore class", "_Custom", false},
		{"leading digit", "1Game", false},
		{"empty", "", false},
		{"spaces", "My Class", false},
		{"dash", "my-class", false},
		{"dotted", "a.b", false},
		{"join with bad field", "_Join:1x:Game", false},
		{"join missing class", "_Join:players:", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names.ValidClassName(tt.class); got != tt.want {
				t.Errorf("ValidClassName(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestValidFieldName(t *testing.T) {
	tests := []struct {
		field string
		want  bool
	}{
		{"score", true},
		{"playerName", true},
		{"a", true},
		{"x_1", true},
		{"_internal", false},
		{"9lives", false},
		{"", false},
		{"has space", false},
		{"has.dot", false},
	}

	for _, tt := range tests {
		if got := names.ValidFieldName(tt.field); got != tt.want {
			t.Errorf("ValidFieldName(%q) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

// TestFieldNamePattern generates random strings and checks the predicate
// against a reference implementation of the pattern.
func TestFieldNamePattern(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := "abcXYZ019_ .-$"

	matches := func(s string) bool {
		if s == "" {
			return false
		}
		for i, r := range s {
			letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			digit := r >= '0' && r <= '9'
			if i == 0 && !letter {
				return false
			}
			if !letter && !digit && r != '_' {
				return false
			}
		}
		return true
	}

	for i := 0; i < 1000; i++ {
		n := rng.Intn(12)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		s := b.String()
		if got, want := names.ValidFieldName(s), matches(s); got != want {
			t.Fatalf("ValidFieldName(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestJoinTableName(t *testing.T) {
	got := names.JoinTableName("players", "Game")
	if got != "_Join:players:Game" {
		t.Errorf("JoinTableName = %q", got)
	}
	if !names.IsJoinTableName(got) {
		t.Errorf("IsJoinTableName(%q) = false", got)
	}
	if names.IsJoinTableName("Game") {
		t.Error("IsJoinTableName(Game) = true")
	}
}

func TestIsSystemClass(t *testing.T) {
	for _, c := range names.SystemClasses() {
		if !names.IsSystemClass(c) {
			t.Errorf("IsSystemClass(%q) = false", c)
		}
		if !names.ValidClassName(c) {
			t.Errorf("ValidClassName(%q) = false", c)
		}
	}
	if names.IsSystemClass("User") {
		t.Error("IsSystemClass(User) = true")
	}
}
