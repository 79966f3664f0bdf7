package spanlist

// View is a contiguous run of a list returned by GetSpans. It shares storage
// with the list.
type View[T, S any, K comparable] struct {
	list  *List[T, S, K]
	start int
	count int
}

// Len returns the number of spans in the view.
func (v View[T, S, K]) Len() int {
	return v.count
}

// Start returns the list index of the first span in the view.
func (v View[T, S, K]) Start() int {
	return v.start
}

// At returns the span at index within the view.
func (v View[T, S, K]) At(index int) (T, error) {
	if index < 0 || index >= v.count {
		var zero T
		return zero, ErrIndexOutOfRange
	}
	return v.list.At(v.start + index)
}

// Spans materializes the view.
func (v View[T, S, K]) Spans() ([]T, error) {
	out := make([]T, 0, v.count)
	for i := 0; i < v.count; i++ {
		span, err := v.list.At(v.start + i)
		if err != nil {
			return nil, err
		}
		out = append(out, span)
	}
	return out, nil
}
