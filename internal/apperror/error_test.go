package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := New(CodePriceNotFound, WithContext("mAAPL"))
	wrapped := fmt.Errorf("latest price: %w", err)

	if !errors.Is(wrapped, New(CodePriceNotFound)) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, New(CodeSourceUnavailable)) {
		t.Error("different codes must not match")
	}
}

func TestIsCode_FollowsCauseChain(t *testing.T) {
	inner := New(CodeDuplicateBucket, WithContext("mAAPL/1m/60"))
	outer := New(CodePersistFailure, WithCause(inner))

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"outer code", outer, CodePersistFailure, true},
		{"inner code", outer, CodeDuplicateBucket, true},
		{"absent code", outer, CodeUndefinedRatio, false},
		{"plain error", errors.New("x"), CodePersistFailure, false},
		{"nil", nil, CodePersistFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeSourceUnavailable, true},
		{CodePersistFailure, true},
		{CodeChainConnection, true},
		{CodeServiceTimeout, true},
		{CodeDivisionByZero, false},
		{CodeUndefinedRatio, false},
		{CodeDuplicateBucket, false},
		{CodePriceNotFound, false},
	}

	for _, tt := range tests {
		if got := IsRetryable(New(tt.code)); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}

	if IsRetryable(New(CodePersistFailure, WithRetryable(false))) {
		t.Error("WithRetryable must override the default")
	}
}

func TestWrap_PreservesAppError(t *testing.T) {
	orig := New(CodeStoreFailure)
	if got := Wrap(orig, CodeInternalError, "query"); got != orig || got.Context != "query" {
		t.Errorf("expected original error with context, got %v", got)
	}

	plain := errors.New("disk full")
	got := Wrap(plain, CodeStoreFailure, "append")
	if got.Code != CodeStoreFailure || !errors.Is(got, plain) {
		t.Errorf("expected wrapped store failure, got %v", got)
	}

	if Wrap(nil, CodeStoreFailure, "") != nil {
		t.Error("Wrap(nil) must be nil")
	}
}

func TestFactories(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := SourceUnavailable("oracle", cause)

	if err.Code != CodeSourceUnavailable || err.Context != "oracle" || !errors.Is(err, cause) {
		t.Errorf("unexpected source error: %+v", err)
	}
	if GetCode(PriceNotFound("x")) != CodePriceNotFound {
		t.Error("expected PRICE_NOT_FOUND")
	}
	if GetCode(errors.New("plain")) != CodeUnknownError {
		t.Error("expected UNKNOWN_ERROR for plain errors")
	}
}
