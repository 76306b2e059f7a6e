package h5j

import "context"

// SetBuildHook installs fn as the build worker hook until the returned
// function is called.
func SetBuildHook(fn func(ctx context.Context, c, z int)) (restore func()) {
	prev := buildHook
	buildHook = fn
	return func() { buildHook = prev }
}
