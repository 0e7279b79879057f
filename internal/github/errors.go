package github

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v81/github"
)

// ErrorKind buckets GitHub API failures by how callers recover from them.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not-found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate-limited"
	default:
		return "other"
	}
}

// Classify maps an error returned by go-github to an ErrorKind.
//
// A RedirectionError only surfaces when redirects are disabled, in which
// case the requested name no longer exists under that name.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return KindRateLimited
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return KindRateLimited
	}
	var redirectErr *github.RedirectionError
	if errors.As(err, &redirectErr) {
		return KindNotFound
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return KindNotFound
		case http.StatusUnauthorized:
			return KindUnauthorized
		case http.StatusForbidden:
			return KindForbidden
		case http.StatusTooManyRequests:
			return KindRateLimited
		}
	}
	return KindOther
}

func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}

// IsAccessDenied reports errors GitHub uses to hide resources from the token:
// 404 for private resources as well as 401/403.
func IsAccessDenied(err error) bool {
	switch Classify(err) {
	case KindNotFound, KindUnauthorized, KindForbidden:
		return true
	default:
		return false
	}
}
