package pointer

// Ref returns a pointer to a copy of v.
//
// It is handy for optional fields of k8s objects, like `BackoffLimit: pointer.Ref[int32](0)`.
func Ref[T any](v T) *T {
	return &v
}

