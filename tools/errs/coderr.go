package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

var DefaultCodeRelation = newCodeRelation()

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

// Wrap attaches a stack trace to a copy of e.
func (e *CodeError) Wrap() error {
	return pkgerrors.WithStack(e.clone())
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
	}
}

// WrapMsg copies e, appends msg and the key/value pairs to its detail and
// attaches a stack trace.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	retErr := e.clone()
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if retErr.Detail == "" {
			retErr.Detail = detail
		} else {
			retErr.Detail += ", " + detail
		}
	}
	return pkgerrors.WithStack(retErr)
}

// Is reports whether target is a CodeError whose code is e's code or related
// to it through DefaultCodeRelation. errors.Is relies on it.
func (e *CodeError) Is(target error) bool {
	var codeErr *CodeError
	if !errors.As(target, &codeErr) {
		return false
	}
	if e == nil || codeErr == nil {
		return e == codeErr
	}
	if e.Code == codeErr.Code {
		return true
	}
	return DefaultCodeRelation.Is(codeErr.Code, e.Code)
}

const initialCapacity = 3

func (e *CodeError) Error() string {
	v := make([]string, 0, initialCapacity)
	v = append(v, strconv.Itoa(e.Code), e.Msg)

	if e.Detail != "" {
		v = append(v, e.Detail)
	}

	return strings.Join(v, " ")
}

// Code returns the code of the first CodeError in err's chain, or 0.
func Code(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return 0
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(pkgerrors.WithMessage(err, toString(msg, kv)))
}

// New builds a plain error carrying a stack trace.
func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteString("=")
		if i+1 < len(kv) {
			b.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}

type CodeRelation interface {
	Add(codes ...int) error
	Is(parent, child int) bool
}

func newCodeRelation() CodeRelation {
	return &codeRelation{m: make(map[int]map[int]struct{})}
}

type codeRelation struct {
	m map[int]map[int]struct{}
}

const minimumCodesLength = 2

func (r *codeRelation) Add(codes ...int) error {
	if len(codes) < minimumCodesLength {
		return New("codes length must be greater than 2", "codes", codes)
	}
	for i := 1; i < len(codes); i++ {
		parent := codes[i-1]
		s, ok := r.m[parent]
		if !ok {
			s = make(map[int]struct{})
			r.m[parent] = s
		}
		for _, code := range codes[i:] {
			s[code] = struct{}{}
		}
	}
	return nil
}

func (r *codeRelation) Is(parent, child int) bool {
	if parent == child {
		return true
	}
	s, ok := r.m[parent]
	if !ok {
		return false
	}
	_, ok = s[child]
	return ok
}
