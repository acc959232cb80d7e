// Package canonical maps save records to and from their named, map-based
// interchange form and serializes that form as MessagePack or JSON.
//
// Positional data of the wire layout is replaced by names: GameRecord songs
// become a map of difficulty name to score, GameKey capability slots become
// optional named values. Count and length fields do not exist here; they are
// recomputed when a canonical value is turned back into a record.
package canonical

type User struct {
	Version      uint8  `msgpack:"version" json:"version"`
	ShowPlayerID bool   `msgpack:"show_player_id" json:"show_player_id"`
	SelfIntro    string `msgpack:"self_intro" json:"self_intro"`
	Avatar       string `msgpack:"avatar" json:"avatar"`
	Background   string `msgpack:"background" json:"background"`
}

type Level struct {
	Clear uint16 `msgpack:"clear" json:"clear"`
	FC    uint16 `msgpack:"fc" json:"fc"`
	Phi   uint16 `msgpack:"phi" json:"phi"`
}

type MultiLevel struct {
	EZ Level `msgpack:"ez" json:"ez"`
	HD Level `msgpack:"hd" json:"hd"`
	IN Level `msgpack:"in" json:"in"`
	AT Level `msgpack:"at" json:"at"`
}

type Summary struct {
	SaveVersion       uint8      `msgpack:"save_version" json:"save_version"`
	ChallengeModeRank uint16     `msgpack:"challenge_mode_rank" json:"challenge_mode_rank"`
	RKS               float32    `msgpack:"rks" json:"rks"`
	GameVersion       uint16     `msgpack:"game_version" json:"game_version"`
	Avatar            string     `msgpack:"avatar" json:"avatar"`
	Level             MultiLevel `msgpack:"level" json:"level"`
}

type SettingsBase struct {
	ChordSupport      bool `msgpack:"chord_support" json:"chord_support"`
	FCAPIndicator     bool `msgpack:"fc_ap_indicator" json:"fc_ap_indicator"`
	EnableHitSound    bool `msgpack:"enable_hit_sound" json:"enable_hit_sound"`
	LowResolutionMode bool `msgpack:"low_resolution_mode" json:"low_resolution_mode"`
}

type Settings struct {
	Version        uint8        `msgpack:"version" json:"version"`
	Base           SettingsBase `msgpack:"base" json:"base"`
	DeviceName     string       `msgpack:"device_name" json:"device_name"`
	Bright         float32      `msgpack:"bright" json:"bright"`
	MusicVolume    float32      `msgpack:"music_volume" json:"music_volume"`
	EffectVolume   float32      `msgpack:"effect_volume" json:"effect_volume"`
	HitSoundVolume float32      `msgpack:"hit_sound_volume" json:"hit_sound_volume"`
	SoundOffset    float32      `msgpack:"sound_offset" json:"sound_offset"`
	NoteScale      float32      `msgpack:"note_scale" json:"note_scale"`
}

// LevelScore is the best result on one difficulty of a song.
type LevelScore struct {
	Score uint32  `msgpack:"score" json:"score"`
	Acc   float32 `msgpack:"acc" json:"acc"`
	FC    bool    `msgpack:"fc" json:"fc"`
}

// SongScores maps a difficulty name (EZ, HD, IN, AT, Legacy) to its score.
type SongScores map[string]LevelScore

// SongMap maps a song name to its scores.
type SongMap map[string]SongScores

type GameRecord struct {
	Version uint8   `msgpack:"version" json:"version"`
	Songs   SongMap `msgpack:"songs" json:"songs"`
}

type ProgressBase struct {
	IsFirstRun                 bool `msgpack:"is_first_run" json:"is_first_run"`
	LegacyChapterFinished      bool `msgpack:"legacy_chapter_finished" json:"legacy_chapter_finished"`
	AlreadyShowCollectionTip   bool `msgpack:"already_show_collection_tip" json:"already_show_collection_tip"`
	AlreadyShowAutoUnlockInTip bool `msgpack:"already_show_auto_unlock_in_tip" json:"already_show_auto_unlock_in_tip"`
}

type Money struct {
	KiB uint16 `msgpack:"kib" json:"kib"`
	MiB uint16 `msgpack:"mib" json:"mib"`
	GiB uint16 `msgpack:"gib" json:"gib"`
	TiB uint16 `msgpack:"tib" json:"tib"`
	PiB uint16 `msgpack:"pib" json:"pib"`
}

type Chapter8Base struct {
	UnlockBegin       bool `msgpack:"unlock_begin" json:"unlock_begin"`
	UnlockSecondPhase bool `msgpack:"unlock_second_phase" json:"unlock_second_phase"`
	Passed            bool `msgpack:"passed" json:"passed"`
}

type GameProgress struct {
	Version                   uint8        `msgpack:"version" json:"version"`
	Base                      ProgressBase `msgpack:"base" json:"base"`
	Completed                 string       `msgpack:"completed" json:"completed"`
	SongUpdateInfo            uint16       `msgpack:"song_update_info" json:"song_update_info"`
	ChallengeModeRank         uint16       `msgpack:"challenge_mode_rank" json:"challenge_mode_rank"`
	Money                     Money        `msgpack:"money" json:"money"`
	UnlockFlagOfSpasmodic     [4]bool      `msgpack:"unlock_flag_of_spasmodic" json:"unlock_flag_of_spasmodic"`
	UnlockFlagOfIgallta       [4]bool      `msgpack:"unlock_flag_of_igallta" json:"unlock_flag_of_igallta"`
	UnlockFlagOfRrharil       [4]bool      `msgpack:"unlock_flag_of_rrharil" json:"unlock_flag_of_rrharil"`
	FlagOfSongRecordKey       [8]bool      `msgpack:"flag_of_song_record_key" json:"flag_of_song_record_key"`
	RandomVersionUnlocked     [6]bool      `msgpack:"random_version_unlocked" json:"random_version_unlocked"`
	Chapter8Base              Chapter8Base `msgpack:"chapter8_base" json:"chapter8_base"`
	Chapter8SongUnlocked      [6]bool      `msgpack:"chapter8_song_unlocked" json:"chapter8_song_unlocked"`
	FlagOfSongRecordKeyTakumi *[3]bool     `msgpack:"flag_of_song_record_key_takumi" json:"flag_of_song_record_key_takumi"`
}

// Key holds the capability values of one collection key. Nil means the
// capability bit is clear.
type Key struct {
	ReadCollectionPieceNum   *uint8 `msgpack:"read_collection_piece_num" json:"read_collection_piece_num"`
	UnlockSingle             *bool  `msgpack:"unlock_single" json:"unlock_single"`
	UnlockCollectionPieceNum *uint8 `msgpack:"unlock_collection_piece_num" json:"unlock_collection_piece_num"`
	UnlockIllustration       *bool  `msgpack:"unlock_illustration" json:"unlock_illustration"`
	UnlockAvatar             *bool  `msgpack:"unlock_avatar" json:"unlock_avatar"`
}

// KeyMap maps a key name to its capabilities.
type KeyMap map[string]Key

type GameKey struct {
	Version                uint8   `msgpack:"version" json:"version"`
	Keys                   KeyMap  `msgpack:"keys" json:"keys"`
	LanotaReadKeys         [6]bool `msgpack:"lanota_read_keys" json:"lanota_read_keys"`
	CamelliaReadKey        *bool   `msgpack:"camellia_read_key" json:"camellia_read_key"`
	SideStory4BeginReadKey *bool   `msgpack:"side_story4_begin_read_key" json:"side_story4_begin_read_key"`
	OldScoreClearedV390    *bool   `msgpack:"old_score_cleared_v390" json:"old_score_cleared_v390"`
}
