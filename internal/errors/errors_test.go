package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestBcfErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *BcfError
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &BcfError{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &BcfError{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &BcfError{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &BcfError{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestBcfErrorJSON(t *testing.T) {
	err := ErrMalformedMarkup("3f2504e0-4f89-11d3-9a0c-0305e82c3301", errors.New("unexpected EOF"))

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("MarshalJSON failed: %v", marshalErr)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result["code"] != string(CodeMalformedMarkup) {
		t.Errorf("code = %v, want %v", result["code"], CodeMalformedMarkup)
	}
	if result["cause"] != "unexpected EOF" {
		t.Errorf("cause = %v, want %v", result["cause"], "unexpected EOF")
	}
}

func TestErrorCodeUniqueness(t *testing.T) {
	codes := []Code{
		CodeNotInitialized,
		CodeMalformedArchive,
		CodeMalformedMarkup,
		CodeMalformedVisualization,
		CodeUnresolvedReference,
		CodeEncoding,
		CodeIssueNotFound,
		CodeGroupNotFound,
		CodeConfigInvalid,
		CodeConfigMissing,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("duplicate error code: %s", code)
		}
		seen[code] = true
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err        *BcfError
		wantStatus int
	}{
		{ErrNotInitialized(), 400},
		{ErrMalformedArchive("x.bcfzip", nil), 400},
		{ErrMalformedMarkup("x", nil), 422},
		{ErrMalformedVisualization("x", nil), 422},
		{ErrUnresolvedReference("2O2Fr$t4X7Zf8NOew3FLOH"), 422},
		{ErrEncoding("x", nil), 500},
		{ErrIssueNotFound("X"), 404},
		{ErrGroupNotFound("X"), 404},
		{ErrConfigInvalid("x", "y"), 400},
		{ErrConfigMissing("x"), 400},
		{Wrap(errors.New("x"), "y"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestWithCause(t *testing.T) {
	original := ErrIssueNotFound("ISSUE-1")
	cause := errors.New("no rows")
	wrapped := original.WithCause(cause)

	if wrapped.Cause != cause {
		t.Error("WithCause should set the cause")
	}
	if original.Cause != nil {
		t.Error("Original should not be modified")
	}
	if wrapped.Code != original.Code || wrapped.What != original.What {
		t.Error("Code and What should be copied")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestIs(t *testing.T) {
	err1 := ErrIssueNotFound("a")
	err2 := ErrIssueNotFound("b")
	err3 := ErrGroupNotFound("a")

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match with Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match")
	}
}

func TestAsBcfError(t *testing.T) {
	bcfErr := ErrEncoding("X", errors.New("invalid character"))

	if AsBcfError(bcfErr) == nil {
		t.Error("AsBcfError should return the error")
	}

	wrapped := fmt.Errorf("build issue: %w", bcfErr)
	if got := AsBcfError(wrapped); got == nil || got.Code != CodeEncoding {
		t.Error("AsBcfError should find a wrapped BcfError")
	}
	if !HasCode(wrapped, CodeEncoding) {
		t.Error("HasCode should match through wrapping")
	}
	if HasCode(wrapped, CodeMalformedArchive) {
		t.Error("HasCode should not match a different code")
	}

	if AsBcfError(errors.New("regular error")) != nil {
		t.Error("AsBcfError should return nil for non-BcfError")
	}
	if AsBcfError(nil) != nil {
		t.Error("AsBcfError should return nil for nil error")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(cause, "operation failed")

	if err.What != "operation failed" {
		t.Errorf("What = %v, want 'operation failed'", err.What)
	}
	if err.Cause != cause {
		t.Error("Cause should be set")
	}
	if err.Code != Code("UNKNOWN") {
		t.Errorf("Code = %v, want UNKNOWN", err.Code)
	}
}
