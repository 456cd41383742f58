//go:build !windows

package overlay

// The original overlay depends on Windows layered window styles. Elsewhere
// both renderers report unsupported and callers degrade to Headless.

func newLayered(opts Options) (Surface, error) {
	return nil, ErrUnsupportedPlatform
}

func newSimple(opts Options) (Surface, error) {
	return nil, ErrUnsupportedPlatform
}
