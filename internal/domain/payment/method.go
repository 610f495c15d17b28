package payment

import (
	"errors"
	"strings"
)

// Method is a supported payment method.
type Method string

const (
	MethodCash         Method = "cash"
	MethodWallet       Method = "wallet"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
)

var ErrInvalidMethod = errors.New("invalid payment method")

// ParseMethod normalizes and validates a payment method string.
func ParseMethod(in string) (Method, error) {
	method := Method(strings.ToLower(strings.TrimSpace(in)))
	if method.Valid() {
		return method, nil
	}
	return "", ErrInvalidMethod
}

// Valid reports whether method is one of the supported payment methods.
func (method Method) Valid() bool {
	switch method {
	case MethodCash, MethodWallet, MethodCard, MethodBankTransfer:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Method.
func (method Method) String() string {
	return string(method)
}
