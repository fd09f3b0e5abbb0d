package config

import "errors"

// ErrConfigurationInvalid marks missing or out-of-range device parameters
var ErrConfigurationInvalid = errors.New("configuration invalid")
