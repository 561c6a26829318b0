package audio

// ----- Ranged Value ----- //

type integer interface {
	~int | ~int8 | ~int16 | ~uint8
}

type valueRange[T integer] struct {
	min T
	max T
}

func (r valueRange[T]) contains(value T) bool {
	return r.min <= value && value <= r.max
}

func (r valueRange[T]) clamp(value T) T {
	return min(max(value, r.min), r.max)
}

// rangedValue keeps a value inside the range it was created with.
type rangedValue[T integer] struct {
	r     valueRange[T]
	value T
}

// newRangedValue clamps the initial value. Used for bulk initialization.
func newRangedValue[T integer](r valueRange[T], value T) rangedValue[T] {
	return rangedValue[T]{r: r, value: r.clamp(value)}
}

func (v rangedValue[T]) get() T {
	return v.value
}

// trySet rejects out-of-range values and reports whether the stored value changed.
func (v *rangedValue[T]) trySet(value T) bool {
	if !v.r.contains(value) || v.value == value {
		return false
	}
	v.value = value
	return true
}

func (v *rangedValue[T]) setAndClamp(value T) {
	v.value = v.r.clamp(value)
}
