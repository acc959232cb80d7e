package record

import (
	"context"

	"github.com/twinfer/phisave/pkg/binschema"
)

type ProgressBase struct {
	IsFirstRun                 bool `bin:"is_first_run"`
	LegacyChapterFinished      bool `bin:"legacy_chapter_finished"`
	AlreadyShowCollectionTip   bool `bin:"already_show_collection_tip"`
	AlreadyShowAutoUnlockInTip bool `bin:"already_show_auto_unlock_in_tip"`
}

// Money is the data currency, one VarInt per tier.
type Money struct {
	KiB uint16 `bin:"kib"`
	MiB uint16 `bin:"mib"`
	GiB uint16 `bin:"gib"`
	TiB uint16 `bin:"tib"`
	PiB uint16 `bin:"pib"`
}

type Chapter8Base struct {
	UnlockBegin       bool `bin:"unlock_begin"`
	UnlockSecondPhase bool `bin:"unlock_second_phase"`
	Passed            bool `bin:"passed"`
}

// GameProgress is the story and unlock progress record. Versions below 3 are rejected.
type GameProgress struct {
	Version                   uint8        `bin:"version"`
	Base                      ProgressBase `bin:"base"`
	Completed                 string       `bin:"completed"`
	SongUpdateInfo            uint16       `bin:"song_update_info"`
	ChallengeModeRank         uint16       `bin:"challenge_mode_rank"`
	Money                     Money        `bin:"money"`
	UnlockFlagOfSpasmodic     [4]bool      `bin:"unlock_flag_of_spasmodic"`
	UnlockFlagOfIgallta       [4]bool      `bin:"unlock_flag_of_igallta"`
	UnlockFlagOfRrharil       [4]bool      `bin:"unlock_flag_of_rrharil"`
	FlagOfSongRecordKey       [8]bool      `bin:"flag_of_song_record_key"`
	RandomVersionUnlocked     [6]bool      `bin:"random_version_unlocked"`
	Chapter8Base              Chapter8Base `bin:"chapter8_base"`
	Chapter8SongUnlocked      [6]bool      `bin:"chapter8_song_unlocked"`
	FlagOfSongRecordKeyTakumi *[3]bool     `bin:"flag_of_song_record_key_takumi"` // version >= 4
}

var gameProgressLayout = newLayout[GameProgress]("game_progress")

// DecodeGameProgress parses a GameProgress record.
func DecodeGameProgress(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*GameProgress, error) {
	return gameProgressLayout.decode(ctx, data, opts...)
}

// Encode writes the record in wire form.
func (g *GameProgress) Encode(ctx context.Context) ([]byte, error) {
	return gameProgressLayout.encode(ctx, g)
}
