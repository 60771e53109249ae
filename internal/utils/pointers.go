package utils

// Ptr returns a pointer to a copy of v
func Ptr[T any](v T) *T {
	return &v
}

// PtrIf returns a pointer to v when set, nil otherwise. Optional request fields
// use it to tell "not given" from the zero value.
func PtrIf[T any](set bool, v T) *T {
	if !set {
		return nil
	}
	return &v
}

// Value dereferences v, giving the zero value for nil
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
