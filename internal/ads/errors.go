package ads

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is the typed form of a Google Ads API failure response. Structured
// detail from the GoogleAdsFailure payload is carried explicitly so callers
// never probe an untyped body.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Failures   []FailureDetail
}

// FailureDetail is one entry of a GoogleAdsFailure: a human-readable message
// plus the structured error code rendered as its JSON form.
type FailureDetail struct {
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if len(e.Failures) > 0 {
		return fmt.Sprintf("ads api: %s (status %d)", e.Failures[0].Message, e.StatusCode)
	}
	return fmt.Sprintf("ads api: %s (status %d)", e.Message, e.StatusCode)
}

// Detail is the per-item failure text surfaced to callers: the first
// structured failure's message joined with its error code, falling back to
// the top-level message.
func (e *APIError) Detail() string {
	if len(e.Failures) == 0 {
		return e.Message
	}
	first := e.Failures[0]
	parts := make([]string, 0, 2)
	if first.Message != "" {
		parts = append(parts, first.Message)
	}
	if first.Code != "" {
		parts = append(parts, first.Code)
	}
	if len(parts) == 0 {
		return e.Message
	}
	return strings.Join(parts, " | ")
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type   string `json:"@type"`
			Errors []struct {
				ErrorCode json.RawMessage `json:"errorCode"`
				Message   string          `json:"message"`
			} `json:"errors"`
		} `json:"details"`
	} `json:"error"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" && len(parsed.Error.Details) == 0 {
		return apiErr
	}

	apiErr.Message = parsed.Error.Message
	apiErr.Status = parsed.Error.Status

	for _, detail := range parsed.Error.Details {
		for _, failure := range detail.Errors {
			code := ""
			if len(failure.ErrorCode) > 0 {
				code = string(failure.ErrorCode)
			}
			apiErr.Failures = append(apiErr.Failures, FailureDetail{
				Message: failure.Message,
				Code:    code,
			})
		}
	}
	return apiErr
}
