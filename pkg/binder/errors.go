package binder

import "errors"

var (
	// ErrBinderNotApplicable signals that the binder has nothing to bind for
	// this request; the handler chain skips it rather than failing.
	ErrBinderNotApplicable = errors.New("binder: not applicable to this request")

	ErrTargetMustBeStructPtr = errors.New("binder: target must be a non-nil struct pointer")
	ErrParseForm             = errors.New("binder: parse form data")
	ErrParseJSON             = errors.New("binder: parse JSON body")
	ErrParseQuery            = errors.New("binder: parse query parameters")
	ErrParsePath             = errors.New("binder: parse path parameters")
)
