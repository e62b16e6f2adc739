package errors

import (
	stdErrors "errors"
)

// DumpInfo is a flattened view of an error chain for structured logging.
type DumpInfo struct {
	TopMessage string
	Code       string
	Reason     string
	Chain      []string
}

// Dump walks the error chain and collects every message for log output.
func Dump(err error) DumpInfo {
	info := DumpInfo{}
	if err == nil {
		return info
	}
	info.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		info.Code = string(typed.Code())
		info.Reason = string(typed.Reason())
	}
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		info.Chain = append(info.Chain, cur.Error())
	}
	return info
}
