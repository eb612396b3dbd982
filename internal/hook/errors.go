package hook

import "errors"

var (
	ErrNotFound         = errors.New("hook not found")
	ErrDisabled         = errors.New("hook is disabled")
	ErrExists           = errors.New("hook already exists")
	ErrTemplateNotFound = errors.New("template not found")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
