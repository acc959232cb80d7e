package main

// #include "exports.h"
import "C"

import (
	"unsafe"

	"github.com/twinfer/phisave/pkg/phisave"
)

//export psc_parse_user
func psc_parse_user(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return parse(phisave.User, ptr, n)
}

//export psc_build_user
func psc_build_user(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return build(phisave.User, ptr, n)
}

//export psc_parse_summary
func psc_parse_summary(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return parse(phisave.Summary, ptr, n)
}

//export psc_build_summary
func psc_build_summary(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return build(phisave.Summary, ptr, n)
}

//export psc_parse_game_record
func psc_parse_game_record(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return parse(phisave.GameRecord, ptr, n)
}

//export psc_build_game_record
func psc_build_game_record(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return build(phisave.GameRecord, ptr, n)
}

//export psc_parse_game_progress
func psc_parse_game_progress(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return parse(phisave.GameProgress, ptr, n)
}

//export psc_build_game_progress
func psc_build_game_progress(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return build(phisave.GameProgress, ptr, n)
}

//export psc_parse_game_key
func psc_parse_game_key(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return parse(phisave.GameKey, ptr, n)
}

//export psc_build_game_key
func psc_build_game_key(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return build(phisave.GameKey, ptr, n)
}

//export psc_parse_settings
func psc_parse_settings(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return parse(phisave.Settings, ptr, n)
}

//export psc_build_settings
func psc_build_settings(ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return build(phisave.Settings, ptr, n)
}

//export psc_malloc
func psc_malloc(n C.uintptr_t) *C.uint8_t {
	return (*C.uint8_t)(boundary().Malloc(int(n)))
}

//export psc_free
func psc_free(ptr *C.uint8_t, n C.uintptr_t) C.bool {
	return C.bool(boundary().Free(unsafe.Pointer(ptr), int(n)))
}

//export psc_get_last_error
func psc_get_last_error() C.Data {
	return toC(boundary().LastError())
}

//export psc_clear_last_error
func psc_clear_last_error() C.bool {
	return C.bool(boundary().ClearLastError())
}
