package record

import (
	"context"

	"github.com/twinfer/phisave/pkg/binschema"
)

// KeyType flags which capability slots follow in Key.Flag, in bit order.
type KeyType struct {
	ExistReadCollectionPieceNum   bool `bin:"exist_read_collection_piece_num"`
	ExistUnlockSingle             bool `bin:"exist_unlock_single"`
	ExistUnlockCollectionPieceNum bool `bin:"exist_unlock_collection_piece_num"`
	ExistUnlockIllustration       bool `bin:"exist_unlock_illustration"`
	ExistUnlockAvatar             bool `bin:"exist_unlock_avatar"`
}

// Key is one collection key. Length is the flag count plus one.
type Key struct {
	Key    string  `bin:"key"`
	Length uint8   `bin:"length"`
	Type   KeyType `bin:"key_type"`
	Flag   []uint8 `bin:"flag"`
}

// GameKey is the collection and unlock key record.
type GameKey struct {
	Version                uint8   `bin:"version"`
	KeySum                 uint16  `bin:"key_sum"`
	KeyList                []Key   `bin:"key_list"`
	LanotaReadKeys         [6]bool `bin:"lanota_read_keys"`
	CamelliaReadKey        *bool   `bin:"camellia_read_key"`          // version >= 2
	SideStory4BeginReadKey *bool   `bin:"side_story4_begin_read_key"` // version >= 3
	OldScoreClearedV390    *bool   `bin:"old_score_cleared_v390"`     // version >= 3
}

var gameKeyLayout = newLayout[GameKey]("game_key")

// DecodeGameKey parses a GameKey record.
func DecodeGameKey(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*GameKey, error) {
	return gameKeyLayout.decode(ctx, data, opts...)
}

// Encode writes the record in wire form. KeySum and each key's Length are recomputed.
func (g *GameKey) Encode(ctx context.Context) ([]byte, error) {
	return gameKeyLayout.encode(ctx, g)
}
