package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeInternal, "something failed", errors.New("underlying")),
			want: "INTERNAL_ERROR: something failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeInternal, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidPayload, http.StatusBadRequest},
		{CodeUnsupportedCad, http.StatusBadRequest},
		{CodeFileMissing, http.StatusNotFound},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeBrokerUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{CodeRenderFailure, http.StatusInternalServerError},
		{CodeUploadFailure, http.StatusInternalServerError},
		{CodeCacheCorruption, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test")
			if status := err.HTTPStatus(); status != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetails(map[string]string{"field": "name"})

	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %s, want name", err.Details["field"])
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetail("field", "name").
		WithDetail("reason", "required")

	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %s, want name", err.Details["field"])
	}

	if err.Details["reason"] != "required" {
		t.Errorf("Details[reason] = %s, want required", err.Details["reason"])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("bad input")
		if err.Code != CodeValidation {
			t.Errorf("Code = %s, want %s", err.Code, CodeValidation)
		}
	})

	t.Run("InvalidPayloadError", func(t *testing.T) {
		err := InvalidPayloadError("missing filePath")
		if err.Code != CodeInvalidPayload {
			t.Errorf("Code = %s, want %s", err.Code, CodeInvalidPayload)
		}
	})

	t.Run("FileMissingError", func(t *testing.T) {
		err := FileMissingError("/tmp/missing.dxf")
		if err.Code != CodeFileMissing {
			t.Errorf("Code = %s, want %s", err.Code, CodeFileMissing)
		}
		if err.Details["path"] != "/tmp/missing.dxf" {
			t.Errorf("Details[path] = %s, want /tmp/missing.dxf", err.Details["path"])
		}
	})

	t.Run("UnsupportedCadError", func(t *testing.T) {
		err := UnsupportedCadError("unsupported AC version", errors.New("parse failed"))
		if err.Code != CodeUnsupportedCad {
			t.Errorf("Code = %s, want %s", err.Code, CodeUnsupportedCad)
		}
	})

	t.Run("TimeoutError", func(t *testing.T) {
		err := TimeoutError("parse")
		if err.Code != CodeTimeout {
			t.Errorf("Code = %s, want %s", err.Code, CodeTimeout)
		}
		if err.Message != "parse timed out" {
			t.Errorf("Message = %s, want 'parse timed out'", err.Message)
		}
	})

	t.Run("RenderFailureError", func(t *testing.T) {
		err := RenderFailureError("rasterization failed", errors.New("oom"))
		if err.Code != CodeRenderFailure {
			t.Errorf("Code = %s, want %s", err.Code, CodeRenderFailure)
		}
	})

	t.Run("UploadFailureError", func(t *testing.T) {
		err := UploadFailureError("s3 put failed", errors.New("timeout"))
		if err.Code != CodeUploadFailure {
			t.Errorf("Code = %s, want %s", err.Code, CodeUploadFailure)
		}
	})

	t.Run("CacheCorruptionError", func(t *testing.T) {
		err := CacheCorruptionError("bad json", errors.New("unexpected EOF"))
		if err.Code != CodeCacheCorruption {
			t.Errorf("Code = %s, want %s", err.Code, CodeCacheCorruption)
		}
	})

	t.Run("BrokerUnavailableError", func(t *testing.T) {
		err := BrokerUnavailableError("amqp dial failed", errors.New("connection refused"))
		if err.Code != CodeBrokerUnavailable {
			t.Errorf("Code = %s, want %s", err.Code, CodeBrokerUnavailable)
		}
	})

	t.Run("InternalError", func(t *testing.T) {
		underlying := errors.New("db error")
		err := InternalError("failed", underlying)
		if err.Code != CodeInternal {
			t.Errorf("Code = %s, want %s", err.Code, CodeInternal)
		}
		if err.Unwrap() != underlying {
			t.Error("Underlying error not preserved")
		}
	})
}

func TestIsCode(t *testing.T) {
	fileMissing := FileMissingError("x.dxf")
	other := ValidationError("test")

	if !IsCode(fileMissing, CodeFileMissing) {
		t.Error("IsCode(FileMissingError, CodeFileMissing) = false, want true")
	}

	if IsCode(other, CodeFileMissing) {
		t.Error("IsCode(ValidationError, CodeFileMissing) = true, want false")
	}

	if IsCode(errors.New("standard error"), CodeFileMissing) {
		t.Error("IsCode(standard error, ...) = true, want false")
	}
}
