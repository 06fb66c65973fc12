package call

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

var (
	errUnsupportedFormat = errors.New("unsupported audio format")
	errFileTooLarge      = errors.New("file exceeds upload limit")
	errEmptyFile         = errors.New("empty audio file")
	errMissingField      = errors.New("missing required field")
	errInvalidDirection  = errors.New("invalid call direction")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// DefaultAudioFormats are the extensions the pipeline's decoder accepts.
var DefaultAudioFormats = []string{"mp3", "wav", "m4a", "webm", "ogg", "flac"}

type Validator struct {
	allowedFormats map[string]struct{}
	maxBytes       int64
}

func NewValidator(formats []string, maxBytes int64) *Validator {
	vf := make(map[string]struct{})
	for _, f := range formats {
		if trimmed := strings.TrimSpace(strings.ToLower(strings.TrimPrefix(f, "."))); trimmed != "" {
			vf[trimmed] = struct{}{}
		}
	}
	return &Validator{allowedFormats: vf, maxBytes: maxBytes}
}

// ValidateUpload checks the audio file and its form fields, returning
// the normalized format (extension without the dot).
func (v *Validator) ValidateUpload(filename string, size int64, req models.UploadCallRequest) (string, error) {
	if v == nil {
		return "", ValidationError{reason: errors.New("validator not initialised")}
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if format == "" {
		return "", ValidationError{reason: fmt.Errorf("file %q has no extension: %w", filename, errUnsupportedFormat)}
	}
	if _, ok := v.allowedFormats[format]; !ok {
		return "", ValidationError{reason: fmt.Errorf("format '%s' not accepted: %w", format, errUnsupportedFormat)}
	}

	if size <= 0 {
		return "", ValidationError{reason: errEmptyFile}
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		return "", ValidationError{reason: fmt.Errorf("%d bytes over the %d byte limit: %w", size-v.maxBytes, v.maxBytes, errFileTooLarge)}
	}

	if strings.TrimSpace(req.CustomerName) == "" {
		return "", ValidationError{reason: fmt.Errorf("customer_name: %w", errMissingField)}
	}
	if strings.TrimSpace(req.SalesRep) == "" {
		return "", ValidationError{reason: fmt.Errorf("sales_rep: %w", errMissingField)}
	}

	switch strings.TrimSpace(strings.ToLower(req.Direction)) {
	case "", "inbound", "outbound":
	default:
		return "", ValidationError{reason: fmt.Errorf("direction '%s': %w", req.Direction, errInvalidDirection)}
	}

	return format, nil
}
