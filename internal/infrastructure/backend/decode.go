package backend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/careermate/authflow/internal/domain"
)

// errorBody is the structured error envelope the API emits for OAuth routes.
type errorBody struct {
	Error     string          `json:"error"`
	ErrorType string          `json:"error_type"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details"`
}

// conflictDetails is the details payload on an account_conflict error.
type conflictDetails struct {
	Email             string   `json:"email"`
	ExistingProviders []string `json:"existing_providers"`
	AttemptedProvider string   `json:"attempted_provider"`
	SuggestedAction   string   `json:"suggested_action"`
}

// decodeError turns a non-2xx response into a domain error. This is the only
// place wire error vocabulary is interpreted; everything above keys on Kind
// and Code.
func decodeError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.ErrorType != "" {
		return errorFromType(eb)
	}

	// Routes outside the OAuth envelope return a bare {"error": "..."}.
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return errorFromStatus(status, eb.Error)
	}
	return errorFromStatus(status, strings.TrimSpace(truncate(string(body), 200)))
}

// errorFromType maps the wire error_type vocabulary onto domain kinds, kept
// in sync with the server's error enum.
func errorFromType(eb errorBody) error {
	switch eb.ErrorType {
	case "oauth_cancelled", "user_denied":
		return domain.New(domain.KindCancelled, eb.ErrorType, messageOr(eb, "sign-in was cancelled"))

	case "network_error":
		return domain.New(domain.KindNetwork, eb.ErrorType, messageOr(eb, "network request failed"))
	case "timeout":
		return domain.New(domain.KindTimeout, eb.ErrorType, messageOr(eb, "request timed out"))

	case "provider_unavailable":
		return domain.New(domain.KindProviderUnavailable, eb.ErrorType, messageOr(eb, "auth provider is unavailable"))
	case "provider_error", "linking_error", "unlinking_error":
		return domain.New(domain.KindProvider, eb.ErrorType, messageOr(eb, "auth provider returned an error"))

	case "invalid_token", "token_expired", "token_validation_failed":
		return domain.New(domain.KindInvalidToken, eb.ErrorType, messageOr(eb, "credential was rejected"))

	case "account_conflict":
		var cd conflictDetails
		_ = json.Unmarshal(eb.Details, &cd)
		return domain.WithMeta(
			domain.New(domain.KindAccountConflict, eb.ErrorType, messageOr(eb, "an account with this email already exists")),
			map[string]string{
				"email":              cd.Email,
				"existing_providers": strings.Join(cd.ExistingProviders, ","),
				"attempted_provider": cd.AttemptedProvider,
				"suggested_action":   cd.SuggestedAction,
				"details":            string(eb.Details),
			},
		)

	case "invalid_provider", "account_not_found":
		return domain.New(domain.KindValidation, eb.ErrorType, messageOr(eb, "request was rejected"))

	case "config_error", "missing_credentials":
		return domain.New(domain.KindConfig, eb.ErrorType, messageOr(eb, "authentication is not configured"))

	default: // unknown_error, internal_error and anything newer than us
		return domain.New(domain.KindInternal, eb.ErrorType, messageOr(eb, "unexpected server error"))
	}
}

// errorFromStatus classifies responses that carry no error_type.
func errorFromStatus(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized:
		return domain.New(domain.KindValidation, "not_authenticated", msg)
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return domain.New(domain.KindNetwork, "network_error", msg)
	case status >= 400 && status < 500:
		return domain.WithMeta(domain.New(domain.KindValidation, "request_rejected", msg), map[string]string{
			"status": strconv.Itoa(status),
		})
	default:
		return domain.WithMeta(domain.New(domain.KindInternal, "unexpected_status", msg), map[string]string{
			"status": strconv.Itoa(status),
		})
	}
}

func messageOr(eb errorBody, fallback string) string {
	if eb.Message != "" {
		return eb.Message
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
