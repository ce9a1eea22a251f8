package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrUnauthorized  = errors.New("unauthorized access, check your client ID and secret")
)

type Collection struct {
	Name  string
	Bands []string
}

var (
	Sentinel2L2A = Collection{
		Name:  "sentinel-2-l2a",
		Bands: []string{"B01", "B02", "B03", "B04", "B05", "B06", "B07", "B08", "B8A", "B09", "B11", "B12", "SCL"},
	}
	Sentinel2L1C = Collection{
		Name:  "sentinel-2-l1c",
		Bands: []string{"B01", "B02", "B03", "B04", "B05", "B06", "B07", "B08", "B8A", "B09", "B10", "B11", "B12"},
	}
)

func CollectionByName(name string) (Collection, error) {
	for _, c := range []Collection{Sentinel2L2A, Sentinel2L1C} {
		if c.Name == name {
			return c, nil
		}
	}
	return Collection{}, fmt.Errorf("unknown collection %q", name)
}

// Client downloads cell mosaics from the Copernicus process API.
type Client struct {
	Credentials []properties.Credential
	TokenURL    string
	ProcessURL  string
	Collection  Collection
	// Resolution is the ground sample distance in meters.
	Resolution float64
	Attempts   int
	RetryWait  time.Duration
	// Validate rejects payloads that are not a usable image.
	Validate func([]byte) error
}

func NewClient(cfg properties.Copernicus, fetch properties.Fetch, collection Collection) *Client {
	return &Client{
		Credentials: cfg.Credentials,
		TokenURL:    cfg.TokenURL,
		ProcessURL:  cfg.ProcessURL,
		Collection:  collection,
		Resolution:  10,
		Attempts:    fetch.Attempts,
		RetryWait:   fetch.RetryWait,
		Validate:    ValidTIFF,
	}
}

// FetchTile returns a GeoTIFF of the cell for the interval. The full interval
// is tried first, then windows ending one day earlier each time, until one of
// them yields a valid image.
func (c *Client) FetchTile(ctx context.Context, cell string, bound orb.Bound, interval planner.Interval) ([]byte, error) {
	if len(c.Credentials) == 0 {
		return nil, fmt.Errorf("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET")
	}
	payloads := make([][]byte, 0)
	for _, window := range Windows(interval) {
		body, err := c.payload(bound, window)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, body)
	}

	validate := c.Validate
	if validate == nil {
		validate = ValidTIFF
	}
	image, err := FirstValid(payloads, func(body []byte) ([]byte, error) {
		return c.requestImage(ctx, body)
	}, validate)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", cell, interval, err)
	}
	return image, nil
}

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	// Clamp to allowed range (1-2500)
	if pixels > 2500 {
		return 2500
	}
	return int(pixels)
}

func (c *Client) evalscript() string {
	quoted := make([]string, 0, len(c.Collection.Bands))
	samples := make([]string, 0, len(c.Collection.Bands))
	for _, band := range c.Collection.Bands {
		quoted = append(quoted, fmt.Sprintf("%q", band))
		samples = append(samples, "sample."+band)
	}
	return fmt.Sprintf(`
    //VERSION=3
    function setup() {
      return {
        input: [%s],
        output: {
          id: "default",
          bands: %d,
          sampleType: SampleType.FLOAT32,
        },
      }
    }

    function evaluatePixel(sample) {
      return [%s];
    }
  `, strings.Join(quoted, ", "), len(c.Collection.Bands), strings.Join(samples, ", "))
}

func (c *Client) payload(bound orb.Bound, window planner.Interval) ([]byte, error) {
	resolution := c.Resolution
	if resolution <= 0 {
		resolution = 10
	}

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"geometry": geojson.NewGeometry(bound.ToPolygon()),
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": window.Start.Format(time.RFC3339),
							"to":   window.End.Format(time.RFC3339),
						},
					},
					"type": c.Collection.Name,
				},
			},
		},
		"output": map[string]interface{}{
			"width":  calculatePixels(bound.Right()-bound.Left(), resolution),
			"height": calculatePixels(bound.Top()-bound.Bottom(), resolution),
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": c.evalscript(),
		"mosaicking": "mostRecent",
	}

	requestBody, err := json.Marshal(requestPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return requestBody, nil
}

// requestImage posts the payload with each credential in turn. A credential
// that is refused moves on to the next one; transient failures are retried up
// to Attempts times.
func (c *Client) requestImage(ctx context.Context, requestBody []byte) ([]byte, error) {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for _, cred := range c.Credentials {
		config := &clientcredentials.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     c.TokenURL,
		}
		httpClient := config.Client(ctx)

		var content []byte
		for attempt := 1; attempt <= attempts; attempt++ {
			content, err = c.post(ctx, httpClient, requestBody)
			if err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrImageNotFound) || ctx.Err() != nil {
				break
			}
			var status *statusError
			if errors.As(err, &status) && !status.retryable() {
				break
			}
			if attempt < attempts {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.RetryWait):
				}
			}
		}
		if err == nil {
			return content, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			continue
		}
		return nil, fmt.Errorf("failed to request image after %d attempts: %w", attempts, err)
	}
	return nil, err
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("process API returned %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, requestBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ProcessURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/tiff")

	response, err := httpClient.Do(req)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case response.StatusCode == http.StatusOK:
		return body, nil
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case response.StatusCode == http.StatusNotFound:
		return nil, ErrImageNotFound
	default:
		return nil, &statusError{code: response.StatusCode, body: string(body)}
	}
}

// ValidTIFF accepts a non-empty payload starting with a TIFF byte order mark.
func ValidTIFF(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrImageNotFound)
	}
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return nil
	}
	return fmt.Errorf("payload of %d bytes is not a TIFF", len(data))
}
