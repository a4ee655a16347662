package catalog

import "errors"

var (
	// ErrImageExists is returned when creating an image whose name:tag is
	// already in the catalog. No fetch or build has happened.
	ErrImageExists = errors.New("image already exists")

	// ErrSourceConflict is returned when a new image would share its source
	// tree directory with a different image ("user/app" and "user_app").
	ErrSourceConflict = errors.New("image source tree belongs to another image")

	// ErrInvalidInput wraps domain validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceMissing is returned when a rebuild finds no source tree.
	ErrSourceMissing = errors.New("image source tree missing")
)

func invalid(err error) error {
	return errors.Join(ErrInvalidInput, err)
}
