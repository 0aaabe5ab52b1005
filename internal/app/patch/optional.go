// Package patch holds the tri-state field type used by PATCH-style inputs.
package patch

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// ApplyPtr writes o into a nullable field. Unspecified leaves dst untouched.
func ApplyPtr[T any](dst **T, o Optional[T]) {
	if !o.specified {
		return
	}
	if o.isNull {
		*dst = nil
		return
	}
	v := o.value
	*dst = &v
}
