package awsvault

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"github.com/systmms/credbox/pkg/vault"
)

// statusOf maps AWS API error codes onto vault statuses.
func statusOf(err error) vault.Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return vault.StatusNotAvailable
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return vault.StatusIO
	}
	switch apiErr.ErrorCode() {
	case "ResourceNotFoundException", "ParameterNotFound":
		return vault.StatusItemNotFound
	case "ResourceExistsException", "ParameterAlreadyExists":
		return vault.StatusDuplicateItem
	case "AccessDeniedException", "AccessDenied", "UnrecognizedClientException",
		"InvalidClientTokenId", "ExpiredTokenException", "ExpiredToken",
		"InvalidSignatureException", "IncompleteSignature":
		return vault.StatusAuthFailed
	case "InvalidParameterException", "InvalidRequestException", "ValidationException",
		"InvalidKeyId", "ParameterMaxVersionLimitExceeded", "ParameterPatternMismatchException",
		"UnsupportedParameterType", "HierarchyLevelLimitExceededException":
		return vault.StatusParam
	case "DecryptionFailure", "EncryptionFailure":
		return vault.StatusDecode
	case "ThrottlingException", "TooManyUpdates", "InternalServiceError",
		"InternalServerError", "ServiceUnavailable", "LimitExceededException",
		"ParameterLimitExceeded":
		return vault.StatusNotAvailable
	}
	return vault.StatusIO
}

func isNotFound(err error) bool {
	return statusOf(err) == vault.StatusItemNotFound
}
