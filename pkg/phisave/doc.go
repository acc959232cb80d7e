// Package phisave provides a high-level API for converting save records between
// their bit-packed wire bytes and the canonical interchange form.
//
// # Overview
//
// A record is selected by its RecordType. Parsing decodes the wire bytes,
// maps the record to its canonical form and optionally serializes that form;
// building runs the same steps in reverse:
//
//	raw bytes -> record.GameKey -> canonical.GameKey -> MessagePack
//
// # Quick Start
//
// The package-level functions use a shared Codec with default options:
//
//	packed, err := phisave.ParseMsgpack(phisave.GameProgress, raw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	raw, err = phisave.BuildMsgpack(phisave.GameProgress, packed)
//
// # Interchange Forms
//
//   - Parse/Build: typed canonical values (*canonical.GameKey, ...)
//   - ParseMsgpack/BuildMsgpack: named-field MessagePack
//   - ParseJSON/BuildJSON: JSON with the same field names
//   - ParseMap/BuildMap: map[string]any for pipeline hosts
//
// # Configuration Options
//
//   - WithLogger(*slog.Logger): custom logging
//   - WithStringPolicy(bitstream.StringPolicy): strict (default) or lossy UTF-8
//
// # Error Handling
//
// Errors carry one of the codecerr kinds and can be classified with errors.Is:
//
//	if errors.Is(err, codecerr.ErrValidation) {
//	    // unsupported version
//	}
//
// Interchange (de)serialization failures and unknown record types are
// boundary errors.
//
// # Thread Safety
//
// A Codec holds no mutable state. Any number of goroutines may share one.
package phisave
