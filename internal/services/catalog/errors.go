package catalog

import "errors"

var ErrSegmentNotFound = errors.New("segment not found")
