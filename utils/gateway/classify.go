package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/kris-hansen/summaprompt/utils/models"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// httpCoder is implemented by gax apierror.APIError, used by the Gemini client
type httpCoder interface {
	HTTPCode() int
}

func classify(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, models.ErrNotConfigured) {
		return KindUnauthorized
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return byStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return byStatus(reqErr.HTTPStatusCode)
	}
	var statusErr *models.StatusError
	if errors.As(err, &statusErr) {
		return byStatus(statusErr.StatusCode)
	}
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return byStatus(googleErr.Code)
	}
	var coder httpCoder
	if errors.As(err, &coder) && coder.HTTPCode() > 0 {
		return byStatus(coder.HTTPCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	return KindUnrecognized
}

func byStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindTransport
	default:
		return KindUnrecognized
	}
}
