package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestStoreErrorFormatting(t *testing.T) {
	err := NewStoreError(CodeStoreCommit, "commit failed").WithOperation("save result")
	want := "[STORE_COMMIT] commit failed (operation: save result)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewStoreError(CodeStoreQuery, "query failed")
	if bare.Error() != "[STORE_QUERY] query failed" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestWrappedCauseUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := WrapStoreError(CodeStoreQuery, "read failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause must survive errors.Is")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"store error", NewStoreError(CodeStoreCommit, "x"), CodeStoreCommit},
		{"probe error", NewProbeError(CodeTimeout, "x", "10.0.0.1"), CodeTimeout},
		{"range error", NewRangeError("bad/99", "x", nil), CodeRangeInvalid},
		{"config error", NewConfigError("port", "x"), CodeConfiguration},
		{"plain error", fmt.Errorf("plain"), CodeUnknown},
		{"nil-cause wrapped", fmt.Errorf("outer: %w", NewProbeError(CodeNoResponse, "x", "a")), CodeNoResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsProbeFailure(t *testing.T) {
	if !IsProbeFailure(NewProbeError(CodeNoResponse, "x", "10.0.0.1")) {
		t.Error("probe error must classify as probe failure")
	}
	if IsProbeFailure(NewStoreError(CodeStoreCommit, "x")) {
		t.Error("store error must not classify as probe failure")
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []error{
		NewStoreError(CodeStoreOpen, "x"),
		NewStoreError(CodeStoreCommit, "x"),
		NewStoreError(CodeStoreSchema, "x"),
		NewRangeError("z", "x", nil),
		NewConfigError("f", "x"),
	}
	for _, err := range fatal {
		if !IsFatal(err) {
			t.Errorf("%v must be fatal", err)
		}
	}

	recoverable := []error{
		NewProbeError(CodeNoResponse, "x", "a"),
		NewProbeError(CodeTimeout, "x", "a"),
		NewProbeError(CodeEngineError, "x", "a"),
		fmt.Errorf("plain"),
	}
	for _, err := range recoverable {
		if IsFatal(err) {
			t.Errorf("%v must not be fatal", err)
		}
	}
}

func TestProbeErrorFormatting(t *testing.T) {
	err := NewProbeError(CodeTimeout, "probe timed out", "192.168.1.5")
	want := "[TIMEOUT] probe timed out (target: 192.168.1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
