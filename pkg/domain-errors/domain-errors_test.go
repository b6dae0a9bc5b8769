package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These are core error primitives used at every trust boundary. Unit tests
// ensure invariants like "wrapped domain errors preserve original code"
// and "errors.Is matches by code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "bracelet not found"}
		s.Equal("bracelet not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeInvalidToken}
		s.Equal("invalid_token", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeInvalidStatus, Message: "cannot claim"}
		err2 := &Error{Code: CodeInvalidStatus, Message: "cannot reactivate"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeInvalidToken}
		err2 := &Error{Code: CodeInvalidStatus}
		s.False(err1.Is(err2))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeConflict, Message: "lost the race"}
		wrapped := &Error{Code: CodeInternal, Message: "wrapped", Err: inner}
		target := &Error{Code: CodeConflict}
		s.True(errors.Is(wrapped, target))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code when wrapping domain error", func() {
		original := New(CodeInvalidStatus, "action not allowed in LOST")
		wrapped := Wrap(original, CodeInternal, "service layer error")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeInvalidStatus, domainErr.Code)
		s.Equal("service layer error", domainErr.Message)
	})

	s.Run("uses provided code when wrapping non-domain error", func() {
		original := errors.New("database timeout")
		wrapped := Wrap(original, CodeUnavailable, "store unreachable")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeUnavailable, domainErr.Code)
	})

	s.Run("preserves retry-after when wrapping rate-limited error", func() {
		original := NewRateLimited("too many attempts", 480)
		wrapped := Wrap(original, CodeInternal, "gate failure")
		s.Equal(480, RetryAfter(wrapped))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("returns true for matching code", func() {
		s.True(HasCode(New(CodeInvalidPin, "wrong pin"), CodeInvalidPin))
	})

	s.Run("returns false for non-domain error", func() {
		s.False(HasCode(errors.New("regular error"), CodeInvalidPin))
	})

	s.Run("returns false for nil error", func() {
		s.False(HasCode(nil, CodeNotFound))
	})
}

func (s *DomainErrorsSuite) TestRetryAfter() {
	s.Run("carries the limiter hint", func() {
		err := NewRateLimited("blocked", 321)
		s.Equal(321, RetryAfter(err))
	})

	s.Run("zero for non-rate-limited errors", func() {
		s.Equal(0, RetryAfter(New(CodeInvalidPin, "nope")))
		s.Equal(0, RetryAfter(nil))
	})
}
