// Package config provides configuration loading and validation for the transcoding service.
// It handles YAML-based configuration for the object store, delivery mode, staging,
// hand-off queue, decoding policy, encoder and logging.
package config
