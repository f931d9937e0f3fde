package repository

import "errors"

// ErrDuplicate is returned when an insert hits a uniqueness constraint, such
// as a second attendance session for the same subject and day or a reused
// email address. Callers map it to a conflict response.
var ErrDuplicate = errors.New("duplicate record")
