package properties

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"checkops/core/utils"

	"github.com/go-resty/resty/v2"
)

type HTTPDirectory struct {
	client *resty.Client
	logger *utils.Logger
}

func NewHTTPDirectory(baseURL string, timeout time.Duration, logger *utils.Logger) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPDirectory{client: client, logger: logger}
}

type cameraResponse struct {
	PropertyID int64 `json:"property_id"`
}

func (d *HTTPDirectory) ResolveProperty(ctx context.Context, tenantID, cameraID string) (int64, error) {
	var out cameraResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"tenant": tenantID, "camera": cameraID}).
		SetResult(&out).
		Get("/tenants/{tenant}/cameras/{camera}")
	if err != nil {
		return 0, fmt.Errorf("property directory: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return 0, ErrUnknownCamera
	case resp.IsError():
		d.logger.Errorf("property directory camera lookup failed: tenant=%s camera=%s status=%d", tenantID, cameraID, resp.StatusCode())
		return 0, fmt.Errorf("property directory: status %d", resp.StatusCode())
	}
	if out.PropertyID <= 0 {
		return 0, ErrUnknownCamera
	}
	return out.PropertyID, nil
}

func (d *HTTPDirectory) GetProperty(ctx context.Context, tenantID string, propertyID int64) (*Property, error) {
	var out Property
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"tenant": tenantID, "id": fmt.Sprint(propertyID)}).
		SetResult(&out).
		Get("/tenants/{tenant}/properties/{id}")
	if err != nil {
		return nil, fmt.Errorf("property directory: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrUnknownProperty
	case resp.IsError():
		return nil, fmt.Errorf("property directory: status %d", resp.StatusCode())
	}
	if out.ID == 0 {
		out.ID = propertyID
	}
	return &out, nil
}
