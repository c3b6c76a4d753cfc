package services

import (
	"errors"
	"fmt"
)

// ConfigurationMessage is shown when an object vanished while it was open.
const ConfigurationMessage = "object no longer exists, please refresh"

// ConfigurationError reports that the object a request refers to no longer
// exists on the server.
type ConfigurationError struct {
	Object string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Object, ConfigurationMessage)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var ErrConfirmationRequired = errors.New("deleting a superuser might result in unwanted behaviour, confirmation required")
