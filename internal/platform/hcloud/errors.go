package hcloud

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Exit codes reported by native API actions. They stay inside the 1-128
// application error band so the runner classifies them like a failed
// client process.
const (
	codeGeneric     = 1
	codeNotFound    = 2
	codeRateLimited = 3
	codeLocked      = 4
)

// exitCode maps an API error to an action exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case isHCloudErrorCode(err, hcloud.ErrorCodeNotFound):
		return codeNotFound
	case isHCloudErrorCode(err, hcloud.ErrorCodeRateLimitExceeded):
		return codeRateLimited
	case isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable):
		return codeLocked
	default:
		return codeGeneric
	}
}

// isHCloudErrorCode checks if the error is an hcloud API error with one
// of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}
	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}
