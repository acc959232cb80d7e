package ffi

import "github.com/twinfer/phisave/pkg/phisave"

// Export describes one exported entry point. Params and Results count the
// machine words passed in and returned.
type Export struct {
	Name    string
	Params  int
	Results int
}

// Exports lists the exported entry points under prefix in a stable order: one
// parse/build pair per record type, then the memory and error functions.
func Exports(prefix string) []Export {
	var out []Export
	for _, rt := range phisave.RecordTypes() {
		out = append(out,
			Export{Name: prefix + "parse_" + string(rt), Params: 2, Results: 2},
			Export{Name: prefix + "build_" + string(rt), Params: 2, Results: 2},
		)
	}
	return append(out,
		Export{Name: prefix + "malloc", Params: 1, Results: 1},
		Export{Name: prefix + "free", Params: 2, Results: 1},
		Export{Name: prefix + "get_last_error", Params: 0, Results: 2},
		Export{Name: prefix + "clear_last_error", Params: 0, Results: 1},
	)
}
