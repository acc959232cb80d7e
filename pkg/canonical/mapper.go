package canonical

import (
	"math/bits"
	"slices"
	"strconv"

	"github.com/twinfer/phisave/pkg/codecerr"
	"github.com/twinfer/phisave/pkg/record"
)

func mapError(path []string, msg string, args ...any) error {
	return codecerr.New(codecerr.PhaseMap, codecerr.KindValidation).Path(path...).Detail(msg, args...).Build()
}

func FromUser(r *record.User) *User {
	c := User(*r)
	return &c
}

func (c *User) Record() *record.User {
	r := record.User(*c)
	return &r
}

func FromSummary(r *record.Summary) *Summary {
	return &Summary{
		SaveVersion:       r.SaveVersion,
		ChallengeModeRank: r.ChallengeModeRank,
		RKS:               r.RKS,
		GameVersion:       r.GameVersion,
		Avatar:            r.Avatar,
		Level: MultiLevel{
			EZ: Level(r.Level.EZ),
			HD: Level(r.Level.HD),
			IN: Level(r.Level.IN),
			AT: Level(r.Level.AT),
		},
	}
}

func (c *Summary) Record() *record.Summary {
	return &record.Summary{
		SaveVersion:       c.SaveVersion,
		ChallengeModeRank: c.ChallengeModeRank,
		RKS:               c.RKS,
		GameVersion:       c.GameVersion,
		Avatar:            c.Avatar,
		Level: record.MultiLevel{
			EZ: record.Level(c.Level.EZ),
			HD: record.Level(c.Level.HD),
			IN: record.Level(c.Level.IN),
			AT: record.Level(c.Level.AT),
		},
	}
}

func FromSettings(r *record.Settings) *Settings {
	return &Settings{
		Version:        r.Version,
		Base:           SettingsBase(r.Base),
		DeviceName:     r.DeviceName,
		Bright:         r.Bright,
		MusicVolume:    r.MusicVolume,
		EffectVolume:   r.EffectVolume,
		HitSoundVolume: r.HitSoundVolume,
		SoundOffset:    r.SoundOffset,
		NoteScale:      r.NoteScale,
	}
}

func (c *Settings) Record() *record.Settings {
	return &record.Settings{
		Version:        c.Version,
		Base:           record.SettingsBase(c.Base),
		DeviceName:     c.DeviceName,
		Bright:         c.Bright,
		MusicVolume:    c.MusicVolume,
		EffectVolume:   c.EffectVolume,
		HitSoundVolume: c.HitSoundVolume,
		SoundOffset:    c.SoundOffset,
		NoteScale:      c.NoteScale,
	}
}

func FromGameProgress(r *record.GameProgress) *GameProgress {
	c := &GameProgress{
		Version:               r.Version,
		Base:                  ProgressBase(r.Base),
		Completed:             r.Completed,
		SongUpdateInfo:        r.SongUpdateInfo,
		ChallengeModeRank:     r.ChallengeModeRank,
		Money:                 Money(r.Money),
		UnlockFlagOfSpasmodic: r.UnlockFlagOfSpasmodic,
		UnlockFlagOfIgallta:   r.UnlockFlagOfIgallta,
		UnlockFlagOfRrharil:   r.UnlockFlagOfRrharil,
		FlagOfSongRecordKey:   r.FlagOfSongRecordKey,
		RandomVersionUnlocked: r.RandomVersionUnlocked,
		Chapter8Base:          Chapter8Base(r.Chapter8Base),
		Chapter8SongUnlocked:  r.Chapter8SongUnlocked,
	}
	if r.FlagOfSongRecordKeyTakumi != nil {
		t := *r.FlagOfSongRecordKeyTakumi
		c.FlagOfSongRecordKeyTakumi = &t
	}
	return c
}

func (c *GameProgress) Record() *record.GameProgress {
	r := &record.GameProgress{
		Version:               c.Version,
		Base:                  record.ProgressBase(c.Base),
		Completed:             c.Completed,
		SongUpdateInfo:        c.SongUpdateInfo,
		ChallengeModeRank:     c.ChallengeModeRank,
		Money:                 record.Money(c.Money),
		UnlockFlagOfSpasmodic: c.UnlockFlagOfSpasmodic,
		UnlockFlagOfIgallta:   c.UnlockFlagOfIgallta,
		UnlockFlagOfRrharil:   c.UnlockFlagOfRrharil,
		FlagOfSongRecordKey:   c.FlagOfSongRecordKey,
		RandomVersionUnlocked: c.RandomVersionUnlocked,
		Chapter8Base:          record.Chapter8Base(c.Chapter8Base),
		Chapter8SongUnlocked:  c.Chapter8SongUnlocked,
	}
	if c.FlagOfSongRecordKeyTakumi != nil {
		t := *c.FlagOfSongRecordKeyTakumi
		r.FlagOfSongRecordKeyTakumi = &t
	}
	return r
}

// FromGameRecord names each song's levels by difficulty. Levels are consumed in
// difficulty order, one per set unlock flag.
func FromGameRecord(r *record.GameRecord) (*GameRecord, error) {
	c := &GameRecord{
		Version: r.Version,
		Songs:   make(SongMap, len(r.SongList)),
	}
	for i, song := range r.SongList {
		path := []string{"song_list", strconv.Itoa(i)}
		if _, dup := c.Songs[song.Name]; dup {
			return nil, mapError(path, "duplicate song name %q", song.Name)
		}
		scores := make(SongScores)
		next := 0
		for _, d := range record.Difficulties {
			if !song.Unlock[d] {
				continue
			}
			if next >= len(song.Levels) {
				return nil, mapError(path, "song %q has %d unlocked difficulties but %d levels", song.Name, countSet(song.Unlock[:]), len(song.Levels))
			}
			lvl := song.Levels[next]
			next++
			scores[d.String()] = LevelScore{Score: lvl.Score, Acc: lvl.Acc, FC: song.FC[d]}
		}
		if next != len(song.Levels) {
			return nil, mapError(path, "song %q has %d levels beyond its unlocked difficulties", song.Name, len(song.Levels)-next)
		}
		c.Songs[song.Name] = scores
	}
	return c, nil
}

// Record rebuilds the positional song list. Songs are emitted in name order and
// each entry's length is recomputed from its level count.
func (c *GameRecord) Record() (*record.GameRecord, error) {
	names := sortedKeys(c.Songs)
	r := &record.GameRecord{
		Version:  c.Version,
		SongList: make([]record.SongEntry, 0, len(names)),
	}
	for _, name := range names {
		scores := c.Songs[name]
		for diff := range scores {
			if _, ok := record.ParseDifficulty(diff); !ok {
				return nil, mapError([]string{"songs", name}, "unknown difficulty %q", diff)
			}
		}
		entry := record.SongEntry{Name: name}
		for _, d := range record.Difficulties {
			s, ok := scores[d.String()]
			if !ok {
				continue
			}
			entry.Unlock[d] = true
			entry.FC[d] = s.FC
			entry.Levels = append(entry.Levels, record.LevelRecord{Score: s.Score, Acc: s.Acc})
		}
		entry.Length = uint16(8*len(entry.Levels) + 2)
		r.SongList = append(r.SongList, entry)
	}
	r.SongSum = uint16(len(r.SongList))
	return r, nil
}

// FromGameKey resolves each key's flag values against its capability bits.
func FromGameKey(r *record.GameKey) (*GameKey, error) {
	c := &GameKey{
		Version:                r.Version,
		Keys:                   make(KeyMap, len(r.KeyList)),
		LanotaReadKeys:         r.LanotaReadKeys,
		CamelliaReadKey:        cloneBool(r.CamelliaReadKey),
		SideStory4BeginReadKey: cloneBool(r.SideStory4BeginReadKey),
		OldScoreClearedV390:    cloneBool(r.OldScoreClearedV390),
	}
	for i, k := range r.KeyList {
		path := []string{"key_list", strconv.Itoa(i)}
		if _, dup := c.Keys[k.Key]; dup {
			return nil, mapError(path, "duplicate key name %q", k.Key)
		}
		bitsSet := []bool{
			k.Type.ExistReadCollectionPieceNum,
			k.Type.ExistUnlockSingle,
			k.Type.ExistUnlockCollectionPieceNum,
			k.Type.ExistUnlockIllustration,
			k.Type.ExistUnlockAvatar,
		}
		if n := countSet(bitsSet); n != len(k.Flag) {
			return nil, mapError(path, "key %q has %d capability bits but %d flag values", k.Key, n, len(k.Flag))
		}
		flags := k.Flag
		pop := func() uint8 {
			v := flags[0]
			flags = flags[1:]
			return v
		}
		popBool := func(name string) (*bool, error) {
			v := pop()
			if v > 1 {
				return nil, mapError(append(path, name), "key %q flag value %d is not boolean", k.Key, v)
			}
			b := v == 1
			return &b, nil
		}

		var key Key
		var err error
		if k.Type.ExistReadCollectionPieceNum {
			v := pop()
			key.ReadCollectionPieceNum = &v
		}
		if k.Type.ExistUnlockSingle {
			if key.UnlockSingle, err = popBool("unlock_single"); err != nil {
				return nil, err
			}
		}
		if k.Type.ExistUnlockCollectionPieceNum {
			v := pop()
			key.UnlockCollectionPieceNum = &v
		}
		if k.Type.ExistUnlockIllustration {
			if key.UnlockIllustration, err = popBool("unlock_illustration"); err != nil {
				return nil, err
			}
		}
		if k.Type.ExistUnlockAvatar {
			if key.UnlockAvatar, err = popBool("unlock_avatar"); err != nil {
				return nil, err
			}
		}
		c.Keys[k.Key] = key
	}
	return c, nil
}

// Record rebuilds the key list in name order. A capability bit is set exactly
// when its value is present.
func (c *GameKey) Record() (*record.GameKey, error) {
	names := sortedKeys(c.Keys)
	r := &record.GameKey{
		Version:                c.Version,
		KeyList:                make([]record.Key, 0, len(names)),
		LanotaReadKeys:         c.LanotaReadKeys,
		CamelliaReadKey:        cloneBool(c.CamelliaReadKey),
		SideStory4BeginReadKey: cloneBool(c.SideStory4BeginReadKey),
		OldScoreClearedV390:    cloneBool(c.OldScoreClearedV390),
	}
	for _, name := range names {
		key := c.Keys[name]
		k := record.Key{Key: name}
		if key.ReadCollectionPieceNum != nil {
			k.Type.ExistReadCollectionPieceNum = true
			k.Flag = append(k.Flag, *key.ReadCollectionPieceNum)
		}
		if key.UnlockSingle != nil {
			k.Type.ExistUnlockSingle = true
			k.Flag = append(k.Flag, boolByte(*key.UnlockSingle))
		}
		if key.UnlockCollectionPieceNum != nil {
			k.Type.ExistUnlockCollectionPieceNum = true
			k.Flag = append(k.Flag, *key.UnlockCollectionPieceNum)
		}
		if key.UnlockIllustration != nil {
			k.Type.ExistUnlockIllustration = true
			k.Flag = append(k.Flag, boolByte(*key.UnlockIllustration))
		}
		if key.UnlockAvatar != nil {
			k.Type.ExistUnlockAvatar = true
			k.Flag = append(k.Flag, boolByte(*key.UnlockAvatar))
		}
		k.Length = uint8(len(k.Flag) + 1)
		r.KeyList = append(r.KeyList, k)
	}
	r.KeySum = uint16(len(r.KeyList))
	return r, nil
}

// Mask returns the capability bitmask of k, bit 0 being read_collection_piece_num.
func (k Key) Mask() uint8 {
	var m uint8
	for i, present := range []bool{
		k.ReadCollectionPieceNum != nil,
		k.UnlockSingle != nil,
		k.UnlockCollectionPieceNum != nil,
		k.UnlockIllustration != nil,
		k.UnlockAvatar != nil,
	} {
		if present {
			m |= 1 << i
		}
	}
	return m
}

// FlagCount is the number of flag bytes k occupies on the wire.
func (k Key) FlagCount() int {
	return bits.OnesCount8(k.Mask())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func countSet(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
