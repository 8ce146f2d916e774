package config

import (
	"fmt"
	"strings"
)

// ValidationError describes one bad configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates every problem so startup reports them all at once.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Err returns nil when nothing failed, otherwise a single error listing
// every failure.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, err.Error())
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required value not set")
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, "must be a positive integer")
	}
}

func (v *Validator) Port(field string, value int) {
	if value < 1 || value > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

func (v *Validator) Enum(field, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Host checks that value is a bare host[:port], since it is glued after
// "<protocol>://" when building links.
func (v *Validator) Host(field, value string) {
	if value == "" {
		return
	}
	if strings.Contains(value, "://") || strings.ContainsAny(value, "/?# ") {
		v.AddError(field, "must be a bare host or host:port")
	}
}

// Validate checks a fully loaded configuration.
func Validate(cfg *Config) error {
	v := NewValidator()

	v.Required("ROOT_DIR", cfg.RootDir)
	v.Required("INTERNAL_HOST", cfg.InternalHost)
	v.Port("INTERNAL_PORT", int(cfg.InternalPort))
	v.Host("EXTERNAL_HOST", cfg.ExternalHost)
	v.Positive("MAX_FILES", int(cfg.MaxFiles))
	v.Positive("MAX_FILESIZE_MB", int(cfg.MaxFilesizeMB))

	if cfg.UploadRateLimit < 0 {
		v.AddError("UPLOAD_RATE_LIMIT", "must not be negative")
	}
	if cfg.ShutdownTimeout <= 0 {
		v.AddError("SHUTDOWN_TIMEOUT", "must be a positive duration")
	}

	v.Enum("LOG_LEVEL", cfg.Log.Level, []string{"trace", "debug", "info", "warn", "error"})
	v.Enum("LOG_FORMAT", cfg.Log.Format, []string{"text", "json"})
	v.Enum("STORAGE_BACKEND", cfg.Storage.Backend, []string{BackendFilesystem, BackendS3})

	if cfg.Storage.Backend == BackendS3 {
		v.Required("S3_ENDPOINT", cfg.S3.Endpoint)
		v.Required("S3_ACCESS_KEY", cfg.S3.AccessKey)
		v.Required("S3_SECRET_KEY", cfg.S3.SecretKey)
		v.Required("S3_BUCKET", cfg.S3.Bucket)
	}

	return v.Err()
}
