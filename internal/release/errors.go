package release

import "errors"

// Sentinel errors callers branch on with errors.Is. All are wrapped with
// context when returned.
var (
	// ErrTenantNotFound indicates no tenant matched the given slug or ID.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTemplateNotFound indicates no usable release cycle template.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrReleaseNotFound indicates no release matched the given ID.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrInvalidTransition indicates the requested stage change is not an
	// edge of the release's stage graph. Nothing is written.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrConflict indicates the release moved concurrently between load
	// and commit. The caller may reload and retry.
	ErrConflict = errors.New("concurrent stage transition")
)
