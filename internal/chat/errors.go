// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package chat

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	apperrors "shellai/internal/errors"
	"shellai/internal/retry"
)

// APIError wraps failures talking to the completion API.
type APIError struct {
	Operation string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error during %s: %v", e.Operation, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

var errNoChoices = errors.New("response contained no choices")

// classifyCompletionError tags err so the retry loop can tell status
// failures from connection failures.
func classifyCompletionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.Wrap(apperrors.CodeHTTPStatus, fmt.Sprintf("completion API returned HTTP %d", apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.Wrap(apperrors.CodeHTTPStatus, fmt.Sprintf("completion API returned HTTP %d", reqErr.HTTPStatusCode), err)
	}
	if retry.IsTransient(err) {
		return apperrors.Wrap(apperrors.CodeTransientNetwork, "completion request failed", err)
	}
	return err
}
