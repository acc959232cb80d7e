package record

import (
	"context"

	"github.com/twinfer/phisave/pkg/binschema"
)

// User is the player profile record.
type User struct {
	Version      uint8  `bin:"version"`
	ShowPlayerID bool   `bin:"show_player_id"`
	SelfIntro    string `bin:"self_intro"`
	Avatar       string `bin:"avatar"`
	Background   string `bin:"background"`
}

var userLayout = newLayout[User]("user")

// DecodeUser parses a User record.
func DecodeUser(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*User, error) {
	return userLayout.decode(ctx, data, opts...)
}

// Encode writes the record in wire form.
func (u *User) Encode(ctx context.Context) ([]byte, error) {
	return userLayout.encode(ctx, u)
}
