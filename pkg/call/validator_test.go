package call

import (
	"strings"
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/models"
)

func validUpload() models.UploadCallRequest {
	return models.UploadCallRequest{
		CustomerName: "Acme Logistics",
		SalesRep:     "Jordan Lee",
		Direction:    "inbound",
	}
}

func TestValidateUploadAcceptsAllFormats(t *testing.T) {
	v := NewValidator(DefaultAudioFormats, 500*1024*1024)

	for _, ext := range []string{"mp3", "wav", "m4a", "webm", "ogg", "flac"} {
		format, err := v.ValidateUpload("call."+ext, 1024, validUpload())
		if err != nil {
			t.Fatalf("%s should be accepted: %v", ext, err)
		}
		if format != ext {
			t.Fatalf("expected format %q, got %q", ext, format)
		}
	}

	if format, err := v.ValidateUpload("CALL.MP3", 1024, validUpload()); err != nil || format != "mp3" {
		t.Fatalf("uppercase extension should normalize: %q, %v", format, err)
	}
}

func TestValidateUploadRejectsBadFormat(t *testing.T) {
	v := NewValidator(DefaultAudioFormats, 500*1024*1024)

	for _, name := range []string{"call.pdf", "call.exe", "call"} {
		_, err := v.ValidateUpload(name, 1024, validUpload())
		if err == nil {
			t.Fatalf("%s should be rejected", name)
		}
		if !IsValidationError(err) {
			t.Fatalf("%s: expected ValidationError, got %T", name, err)
		}
	}
}

func TestValidateUploadEnforcesSizeLimit(t *testing.T) {
	v := NewValidator(DefaultAudioFormats, 100)

	if _, err := v.ValidateUpload("call.mp3", 101, validUpload()); err == nil {
		t.Fatal("oversize upload should be rejected")
	}
	if _, err := v.ValidateUpload("call.mp3", 100, validUpload()); err != nil {
		t.Fatalf("upload at the limit should pass: %v", err)
	}
	if _, err := v.ValidateUpload("call.mp3", 0, validUpload()); err == nil {
		t.Fatal("empty upload should be rejected")
	}
}

func TestValidateUploadRequiredFields(t *testing.T) {
	v := NewValidator(DefaultAudioFormats, 500*1024*1024)

	req := validUpload()
	req.CustomerName = "  "
	if _, err := v.ValidateUpload("call.mp3", 1024, req); err == nil || !strings.Contains(err.Error(), "customer_name") {
		t.Fatalf("expected customer_name error, got %v", err)
	}

	req = validUpload()
	req.SalesRep = ""
	if _, err := v.ValidateUpload("call.mp3", 1024, req); err == nil || !strings.Contains(err.Error(), "sales_rep") {
		t.Fatalf("expected sales_rep error, got %v", err)
	}

	req = validUpload()
	req.Direction = "sideways"
	if _, err := v.ValidateUpload("call.mp3", 1024, req); err == nil {
		t.Fatal("expected direction error")
	}

	req = validUpload()
	req.Direction = ""
	if _, err := v.ValidateUpload("call.mp3", 1024, req); err != nil {
		t.Fatalf("empty direction should default later, not fail: %v", err)
	}
}
