package record

import (
	"context"

	"github.com/twinfer/phisave/pkg/binschema"
)

// Level counts cleared, full-combo and phi charts of one difficulty.
type Level struct {
	Clear uint16 `bin:"clear"`
	FC    uint16 `bin:"fc"`
	Phi   uint16 `bin:"phi"`
}

type MultiLevel struct {
	EZ Level `bin:"ez"`
	HD Level `bin:"hd"`
	IN Level `bin:"in"`
	AT Level `bin:"at"`
}

// Summary is the cloud save summary record.
type Summary struct {
	SaveVersion       uint8      `bin:"save_version"`
	ChallengeModeRank uint16     `bin:"challenge_mode_rank"`
	RKS               float32    `bin:"rks"`
	GameVersion       uint16     `bin:"game_version"`
	Avatar            string     `bin:"avatar"`
	Level             MultiLevel `bin:"level"`
}

var summaryLayout = newLayout[Summary]("summary")

// DecodeSummary parses a Summary record.
func DecodeSummary(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (*Summary, error) {
	return summaryLayout.decode(ctx, data, opts...)
}

// Encode writes the record in wire form.
func (s *Summary) Encode(ctx context.Context) ([]byte, error) {
	return summaryLayout.encode(ctx, s)
}
