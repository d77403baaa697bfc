package cursor

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrInvalidFormat 游标不符合 host:port@cursor(||host:port@cursor)* 语法
var ErrInvalidFormat = errors.New("incorrect cluster cursor format")

// FormatError 组合游标解析失败
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %q", ErrInvalidFormat, e.Input)
	}
	return fmt.Sprintf("%s: %q: %s", ErrInvalidFormat, e.Input, e.Reason)
}

// Unwrap 支持 errors.Is(err, ErrInvalidFormat)
func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}
