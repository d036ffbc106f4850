package protocol

import "errors"

var (
	ErrInvalidSymbol   = errors.New("protocol: invalid symbol")
	ErrInvalidAlphabet = errors.New("protocol: invalid alphabet")
	ErrDecode          = errors.New("protocol: decode failed")
	ErrUnknownVariant  = errors.New("protocol: unknown variant")
	ErrUnknownLevel    = errors.New("protocol: unknown error-correction level")
	ErrLeadingZero     = errors.New("protocol: payload starts with a zero byte")
)
