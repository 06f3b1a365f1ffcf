package param

import "errors"

// ErrParameterNotFound — именованный параметр не найден ни в одном источнике.
var ErrParameterNotFound = errors.New("parameter not found")
