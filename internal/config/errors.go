package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps env file, YAML and environment read failures.
	ErrLoadConfig = errors.New("load config failed")
	// ErrStorageDriver marks a storage_driver other than memory, sqlite or
	// postgres. It is always joined with ErrInvalidConfig.
	ErrStorageDriver = errors.New("unsupported storage driver")
)
