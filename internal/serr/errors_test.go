package serr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Formatting Tests
// -----------------------------------------------------------------------------

func TestError_Format(t *testing.T) {
	err := New(ErrDependency, "cannot drop type").
		With("name", "default::User").
		With("kind", "type")

	got := err.Error()
	if !strings.HasPrefix(got, "[E2001] cannot drop type") {
		t.Errorf("Error() = %q, want [E2001] prefix", got)
	}
	// Context renders in sorted key order.
	kindIdx := strings.Index(got, "kind: type")
	nameIdx := strings.Index(got, "name: default::User")
	if kindIdx < 0 || nameIdx < 0 {
		t.Fatalf("Error() = %q, missing context lines", got)
	}
	if kindIdx > nameIdx {
		t.Errorf("Error() context not sorted: %q", got)
	}
}

func TestError_FormatCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrCacheWrite, cause, "snapshot write failed")

	got := err.Error()
	if !strings.Contains(got, "cause: disk full") {
		t.Errorf("Error() = %q, want cause line", got)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrObjectNotFound, "no %s named %q", "type", "User")
	if err.GetMessage() != `no type named "User"` {
		t.Errorf("GetMessage() = %q", err.GetMessage())
	}
}

// -----------------------------------------------------------------------------
// Wrapping Tests
// -----------------------------------------------------------------------------

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(ErrInternal, cause, "wrapped")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false, want true")
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want cause", errors.Unwrap(err))
	}
}

func TestWrap_NilCause(t *testing.T) {
	err := Wrap(ErrInternal, nil, "no cause")
	if errors.Unwrap(err) != nil {
		t.Errorf("Unwrap() = %v, want nil", errors.Unwrap(err))
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := New(ErrObjectNotFound, "first")
	b := New(ErrObjectNotFound, "second")
	c := New(ErrObjectExists, "third")

	if !errors.Is(a, b) {
		t.Errorf("errors.Is should match same-code errors")
	}
	if errors.Is(a, c) {
		t.Errorf("errors.Is matched different codes")
	}
}

func TestError_IsThroughWrapping(t *testing.T) {
	inner := New(ErrExprCompile, "bad expression")
	outer := fmt.Errorf("loading schema: %w", inner)

	if !errors.Is(outer, New(ErrExprCompile, "")) {
		t.Errorf("errors.Is should see through fmt.Errorf wrapping")
	}
}

// -----------------------------------------------------------------------------
// Code Extraction Tests
// -----------------------------------------------------------------------------

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boring"), ""},
		{"direct", New(ErrDependency, "x"), ErrDependency},
		{"wrapped in fmt", fmt.Errorf("ctx: %w", New(ErrCacheRead, "x")), ErrCacheRead},
		{"outermost wins", Wrap(ErrInternal, New(ErrCacheRead, "x"), "y"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrReadOnlyModule, "std is read-only")
	if !Is(err, ErrReadOnlyModule) {
		t.Errorf("Is() = false, want true")
	}
	if Is(err, ErrDependency) {
		t.Errorf("Is() matched wrong code")
	}
	if Is(nil, ErrDependency) {
		t.Errorf("Is(nil) = true, want false")
	}
}

func TestHasCode(t *testing.T) {
	if !HasCode(New(ErrInternal, "x")) {
		t.Errorf("HasCode() = false for coded error")
	}
	if HasCode(errors.New("plain")) {
		t.Errorf("HasCode() = true for plain error")
	}
}

// -----------------------------------------------------------------------------
// Context Tests
// -----------------------------------------------------------------------------

func TestError_WithChaining(t *testing.T) {
	err := New(ErrDependency, "blocked").
		WithObject("type 'default::User'").
		WithDetail("index 'default::User.email_idx' still references it")

	ctx := err.GetContext()
	if ctx["object"] != "type 'default::User'" {
		t.Errorf("object context = %v", ctx["object"])
	}
	if err.Details() != "index 'default::User.email_idx' still references it" {
		t.Errorf("Details() = %q", err.Details())
	}
}
