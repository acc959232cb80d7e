package phisave

import (
	"context"
	"fmt"

	"github.com/twinfer/phisave/pkg/binschema"
	"github.com/twinfer/phisave/pkg/canonical"
	"github.com/twinfer/phisave/pkg/codecerr"
	"github.com/twinfer/phisave/pkg/record"
)

// RecordType names one of the six save records.
type RecordType string

const (
	User         RecordType = "user"
	Summary      RecordType = "summary"
	GameRecord   RecordType = "game_record"
	GameProgress RecordType = "game_progress"
	GameKey      RecordType = "game_key"
	Settings     RecordType = "settings"
)

var recordTypes = []RecordType{User, Summary, GameRecord, GameProgress, GameKey, Settings}

// RecordTypes returns every supported record type in a fixed order.
func RecordTypes() []RecordType {
	return append([]RecordType(nil), recordTypes...)
}

// ParseRecordType resolves a record type name.
func ParseRecordType(name string) (RecordType, error) {
	for _, rt := range recordTypes {
		if string(rt) == name {
			return rt, nil
		}
	}
	return "", unknownRecordType(name)
}

func unknownRecordType(name string) error {
	return codecerr.New(codecerr.PhaseBoundary, codecerr.KindBoundary).
		Detail("unknown record type '%s'", name).
		Build()
}

// handler moves one record type through the wire and canonical forms.
type handler interface {
	parse(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (any, error)
	build(ctx context.Context, v any) ([]byte, error)
	newCanonical() any
}

type recordHandler[R, C any] struct {
	name   RecordType
	decode func(context.Context, []byte, ...binschema.DecodeOption) (*R, error)
	encode func(*R, context.Context) ([]byte, error)
	toC    func(*R) (*C, error)
	fromC  func(*C) (*R, error)
}

func (h recordHandler[R, C]) parse(ctx context.Context, data []byte, opts ...binschema.DecodeOption) (any, error) {
	r, err := h.decode(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	return h.toC(r)
}

func (h recordHandler[R, C]) build(ctx context.Context, v any) ([]byte, error) {
	var c *C
	switch t := v.(type) {
	case *C:
		c = t
	case C:
		c = &t
	default:
		return nil, codecerr.New(codecerr.PhaseBoundary, codecerr.KindBoundary).
			Detail("%s expects %T, got %T", h.name, c, v).
			Build()
	}
	if c == nil {
		return nil, codecerr.Boundary(fmt.Sprintf("nil %s value", h.name), nil)
	}
	r, err := h.fromC(c)
	if err != nil {
		return nil, err
	}
	return h.encode(r, ctx)
}

func (h recordHandler[R, C]) newCanonical() any {
	return new(C)
}

func infallible[R, C any](f func(*R) *C) func(*R) (*C, error) {
	return func(r *R) (*C, error) { return f(r), nil }
}

var handlers = map[RecordType]handler{
	User: recordHandler[record.User, canonical.User]{
		name:   User,
		decode: record.DecodeUser,
		encode: (*record.User).Encode,
		toC:    infallible(canonical.FromUser),
		fromC:  infallible((*canonical.User).Record),
	},
	Summary: recordHandler[record.Summary, canonical.Summary]{
		name:   Summary,
		decode: record.DecodeSummary,
		encode: (*record.Summary).Encode,
		toC:    infallible(canonical.FromSummary),
		fromC:  infallible((*canonical.Summary).Record),
	},
	Settings: recordHandler[record.Settings, canonical.Settings]{
		name:   Settings,
		decode: record.DecodeSettings,
		encode: (*record.Settings).Encode,
		toC:    infallible(canonical.FromSettings),
		fromC:  infallible((*canonical.Settings).Record),
	},
	GameProgress: recordHandler[record.GameProgress, canonical.GameProgress]{
		name:   GameProgress,
		decode: record.DecodeGameProgress,
		encode: (*record.GameProgress).Encode,
		toC:    infallible(canonical.FromGameProgress),
		fromC:  infallible((*canonical.GameProgress).Record),
	},
	GameRecord: recordHandler[record.GameRecord, canonical.GameRecord]{
		name:   GameRecord,
		decode: record.DecodeGameRecord,
		encode: (*record.GameRecord).Encode,
		toC:    canonical.FromGameRecord,
		fromC:  (*canonical.GameRecord).Record,
	},
	GameKey: recordHandler[record.GameKey, canonical.GameKey]{
		name:   GameKey,
		decode: record.DecodeGameKey,
		encode: (*record.GameKey).Encode,
		toC:    canonical.FromGameKey,
		fromC:  (*canonical.GameKey).Record,
	},
}

func lookup(rt RecordType) (handler, error) {
	h, ok := handlers[rt]
	if !ok {
		return nil, unknownRecordType(string(rt))
	}
	return h, nil
}
