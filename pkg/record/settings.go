package record

import (
	"context"

	"github.com/twinfer/phisave/pkg/binschema"
)

type SettingsBase struct {
	ChordSupport      bool `bin:"chord_support"`
	FCAPIndicator     bool `bin:"fc_ap_indicator"`
	EnableHitSound    bool `bin:"enable_hit_sound"`
	LowResolutionMode bool `bin:"low_resolution_mode"`
}

// Settings is the client settings record.
type Settings struct {
	Version        uint8        `bin:"version"`
	Base           SettingsBase `bin:"base"`
	DeviceName     string       `bin:"device_name"`
	Bright         float32      `bin:"bright"`
	MusicVolume    float32      `bin:"music_volume"`
	EffectVolume   float32      `bin:"effect_volume"`
	HitSoundVolume float32      `bin:"hit_sound_volume"`
	SoundOffset    float32      `bin:"sound_offset"`
	NoteScale      float32      `bin:"note_scale"`
}

var settingsLayout = newLayout[Settings]("settings")

// DecodeSettings parses a Settings record.
func DecodeSettings(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*Settings, error) {
	return settingsLayout.decode(ctx, data, opts...)
}

// Encode writes the record in wire form.
func (s *Settings) Encode(ctx context.Context) ([]byte, error) {
	return settingsLayout.encode(ctx, s)
}
