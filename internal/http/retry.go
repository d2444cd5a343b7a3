package http

import (
	"context"
	nethttp "net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// connectionErrorsOnly retries only when no response arrived at all.
// A response with any status is the remote's answer and is final.
func connectionErrorsOnly(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
