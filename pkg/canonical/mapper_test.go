package canonical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/phisave/pkg/codecerr"
	"github.com/twinfer/phisave/pkg/record"
)

func ptr[T any](v T) *T { return &v }

func TestGameRecordMapping(t *testing.T) {
	r := &record.GameRecord{
		Version: 1,
		SongSum: 1,
		SongList: []record.SongEntry{{
			Name:   "s.0",
			Length: 18,
			Unlock: [5]bool{true, false, true},
			FC:     [5]bool{true},
			Levels: []record.LevelRecord{{Score: 100, Acc: 50}, {Score: 200, Acc: 90}},
		}},
	}

	c, err := FromGameRecord(r)
	require.NoError(t, err)
	assert.Equal(t, &GameRecord{
		Version: 1,
		Songs: map[string]SongScores{
			"s.0": {
				"EZ": {Score: 100, Acc: 50, FC: true},
				"IN": {Score: 200, Acc: 90, FC: false},
			},
		},
	}, c)

	back, err := c.Record()
	require.NoError(t, err)
	assert.Equal(t, r, back)

	t.Run("songs are emitted in name order", func(t *testing.T) {
		c := &GameRecord{Version: 2, Songs: map[string]SongScores{
			"b": {"AT": {Score: 3}},
			"a": {"Legacy": {Score: 1}, "HD": {Score: 2, FC: true}},
			"c": {},
		}}
		r, err := c.Record()
		require.NoError(t, err)
		require.Len(t, r.SongList, 3)
		assert.Equal(t, uint16(3), r.SongSum)
		assert.Equal(t, []string{"a", "b", "c"}, []string{r.SongList[0].Name, r.SongList[1].Name, r.SongList[2].Name})

		a := r.SongList[0]
		assert.Equal(t, [5]bool{false, true, false, false, true}, a.Unlock)
		assert.Equal(t, [5]bool{false, true}, a.FC)
		assert.Equal(t, []record.LevelRecord{{Score: 2}, {Score: 1}}, a.Levels)
		assert.Equal(t, uint16(18), a.Length)
		assert.Equal(t, uint16(2), r.SongList[2].Length)
	})

	t.Run("unknown difficulty", func(t *testing.T) {
		c := &GameRecord{Songs: map[string]SongScores{"x": {"SP": {}}}}
		_, err := c.Record()
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrValidation)
	})

	t.Run("duplicate song name", func(t *testing.T) {
		r := &record.GameRecord{SongList: []record.SongEntry{{Name: "x"}, {Name: "x"}}}
		_, err := FromGameRecord(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrValidation)
		assert.Contains(t, err.Error(), "song_list.1")
	})

	t.Run("levels beyond unlocked difficulties", func(t *testing.T) {
		r := &record.GameRecord{SongList: []record.SongEntry{{
			Name:   "x",
			Unlock: [5]bool{true},
			Levels: []record.LevelRecord{{}, {}},
		}}}
		_, err := FromGameRecord(r)
		assert.ErrorIs(t, err, codecerr.ErrValidation)
	})
}

func TestGameKeyMapping(t *testing.T) {
	t.Run("single avatar capability", func(t *testing.T) {
		c := &GameKey{
			Version: 1,
			Keys:    map[string]Key{"k": {UnlockAvatar: ptr(true)}},
		}
		r, err := c.Record()
		require.NoError(t, err)
		require.Len(t, r.KeyList, 1)
		k := r.KeyList[0]
		assert.Equal(t, record.KeyType{ExistUnlockAvatar: true}, k.Type)
		assert.Equal(t, []uint8{1}, k.Flag)
		assert.Equal(t, uint8(2), k.Length)
		assert.Equal(t, uint16(1), r.KeySum)
		assert.Equal(t, uint8(0x10), c.Keys["k"].Mask())

		raw, err := r.Encode(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x01, 0x01, 'k', 0x02, 0x10, 0x01, 0x00}, raw)
	})

	t.Run("flags follow bit order", func(t *testing.T) {
		r := &record.GameKey{
			Version: 3,
			KeyList: []record.Key{{
				Key:    "multi",
				Length: 5,
				Type: record.KeyType{
					ExistReadCollectionPieceNum:   true,
					ExistUnlockSingle:             true,
					ExistUnlockCollectionPieceNum: true,
					ExistUnlockAvatar:             true,
				},
				Flag: []uint8{7, 0, 9, 1},
			}},
			LanotaReadKeys:         [6]bool{true},
			CamelliaReadKey:        ptr(true),
			SideStory4BeginReadKey: ptr(false),
			OldScoreClearedV390:    ptr(true),
		}
		c, err := FromGameKey(r)
		require.NoError(t, err)
		assert.Equal(t, Key{
			ReadCollectionPieceNum:   ptr(uint8(7)),
			UnlockSingle:             ptr(false),
			UnlockCollectionPieceNum: ptr(uint8(9)),
			UnlockAvatar:             ptr(true),
		}, c.Keys["multi"])
		assert.Equal(t, 4, c.Keys["multi"].FlagCount())

		back, err := c.Record()
		require.NoError(t, err)
		r.KeySum = 1
		assert.Equal(t, r, back)
	})

	t.Run("flag count must match capability bits", func(t *testing.T) {
		r := &record.GameKey{KeyList: []record.Key{{
			Key:  "k",
			Type: record.KeyType{ExistUnlockSingle: true},
			Flag: []uint8{1, 1},
		}}}
		_, err := FromGameKey(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, codecerr.ErrValidation)
	})

	t.Run("boolean capability must be 0 or 1", func(t *testing.T) {
		r := &record.GameKey{KeyList: []record.Key{{
			Key:  "k",
			Type: record.KeyType{ExistUnlockIllustration: true},
			Flag: []uint8{2},
		}}}
		_, err := FromGameKey(r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unlock_illustration")
	})

	t.Run("empty key keeps zero flags", func(t *testing.T) {
		c := &GameKey{Keys: map[string]Key{"z": {}}}
		r, err := c.Record()
		require.NoError(t, err)
		assert.Equal(t, uint8(1), r.KeyList[0].Length)
		assert.Empty(t, r.KeyList[0].Flag)
	})
}

func TestFlatMappings(t *testing.T) {
	u := &record.User{Version: 1, ShowPlayerID: true, SelfIntro: "hi", Avatar: "a", Background: "b"}
	assert.Equal(t, u, FromUser(u).Record())

	s := &record.Summary{
		SaveVersion: 6, RKS: 15.25, Avatar: "x",
		Level: record.MultiLevel{AT: record.Level{Clear: 1, FC: 2, Phi: 3}},
	}
	cs := FromSummary(s)
	assert.Equal(t, Level{Clear: 1, FC: 2, Phi: 3}, cs.Level.AT)
	assert.Equal(t, s, cs.Record())

	st := &record.Settings{Version: 1, Base: record.SettingsBase{FCAPIndicator: true}, DeviceName: "pc", SoundOffset: -0.5}
	assert.Equal(t, st, FromSettings(st).Record())

	for _, takumi := range []*[3]bool{nil, {true, false, true}} {
		p := &record.GameProgress{
			Version:                   4,
			Money:                     record.Money{KiB: 1, PiB: 2},
			Chapter8Base:              record.Chapter8Base{Passed: true},
			FlagOfSongRecordKeyTakumi: takumi,
		}
		cp := FromGameProgress(p)
		assert.Equal(t, p, cp.Record())
		if takumi != nil {
			assert.NotSame(t, takumi, cp.FlagOfSongRecordKeyTakumi)
		}
	}
}
