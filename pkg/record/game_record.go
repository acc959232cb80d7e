package record

import (
	"context"

	"github.com/twinfer/phisave/pkg/binschema"
)

// Difficulty indexes the unlock and fc flag arrays of a song entry.
type Difficulty int

const (
	EZ Difficulty = iota
	HD
	IN
	AT
	Legacy
)

// Difficulties lists every difficulty in wire order.
var Difficulties = [...]Difficulty{EZ, HD, IN, AT, Legacy}

var difficultyNames = [...]string{"EZ", "HD", "IN", "AT", "Legacy"}

func (d Difficulty) String() string {
	if d < 0 || int(d) >= len(difficultyNames) {
		return "Difficulty(?)"
	}
	return difficultyNames[d]
}

// ParseDifficulty maps a difficulty name back to its index.
func ParseDifficulty(name string) (Difficulty, bool) {
	for i, n := range difficultyNames {
		if n == name {
			return Difficulty(i), true
		}
	}
	return 0, false
}

type LevelRecord struct {
	Score uint32  `bin:"score"`
	Acc   float32 `bin:"acc"`
}

// SongEntry holds one level record per set unlock flag, in difficulty order.
type SongEntry struct {
	Name   string        `bin:"name"`
	Length uint16        `bin:"length"`
	Unlock [5]bool       `bin:"unlock"`
	FC     [5]bool       `bin:"fc"`
	Levels []LevelRecord `bin:"levels"`
}

// GameRecord is the per-song best score record.
type GameRecord struct {
	Version  uint8       `bin:"version"`
	SongSum  uint16      `bin:"song_sum"`
	SongList []SongEntry `bin:"song_list"`
}

var gameRecordLayout = newLayout[GameRecord]("game_record")

// DecodeGameRecord parses a GameRecord record.
func DecodeGameRecord(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*GameRecord, error) {
	return gameRecordLayout.decode(ctx, data, opts...)
}

// Encode writes the record in wire form. SongSum and each entry's Length are recomputed.
func (g *GameRecord) Encode(ctx context.Context) ([]byte, error) {
	return gameRecordLayout.encode(ctx, g)
}
