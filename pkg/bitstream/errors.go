package bitstream

import (
	"fmt"

	"github.com/twinfer/phisave/pkg/codecerr"
)

var (
	// ErrInvalidUTF8 is returned by strict string decoding and by string encoding.
	ErrInvalidUTF8 = codecerr.New("", codecerr.KindEncoding).Detail("invalid utf-8 in string").Build()
	// ErrVarIntOverflow is returned when encoding a value above VarIntMax.
	ErrVarIntOverflow = codecerr.New("", codecerr.KindEncoding).Detail("varint value exceeds %d", VarIntMax).Build()
)

// InsufficientBitsError reports a read past the end of the buffer.
type InsufficientBitsError struct {
	Needed    int64
	Available int64
	Offset    int64
}

func (e *InsufficientBitsError) Error() string {
	return fmt.Sprintf("insufficient bits at offset %d: needed %d, available %d", e.Offset, e.Needed, e.Available)
}

// Is makes the error match codecerr.ErrStructural.
func (e *InsufficientBitsError) Is(target error) bool {
	return target == codecerr.ErrStructural
}
