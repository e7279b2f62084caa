package openai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/vidqa/ai"
	"github.com/poiesic/vidqa/core"
)

// placeholderToken satisfies client constructors that refuse an empty key.
// Requests are never sent with it; every call checks for a real credential first.
const placeholderToken = "none"

var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

func clientToken(config *ai.Config) string {
	if config.HasCredential() {
		return config.APIKey
	}
	return placeholderToken
}

// audioFileName names the multipart upload so the service can infer the container.
func audioFileName(format string) string {
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	if format == "" {
		format = core.DefaultAudioFormat
	}
	return "audio." + format
}

// wrapServiceError converts a langchaingo error carrying an HTTP status into *ai.StatusError.
func wrapServiceError(service string, err error) error {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	return &ai.StatusError{Service: service, StatusCode: code, Body: err.Error(), Err: err}
}

// withDeadline bounds one service call. A non-positive timeout leaves ctx as is.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
