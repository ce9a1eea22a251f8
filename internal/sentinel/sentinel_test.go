package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tiff = []byte("II*\x00 fake raster")

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestWindows(t *testing.T) {
	windows := Windows(planner.Interval{Start: day("2021-01-01"), End: day("2021-01-04")})
	require.Len(t, windows, 3)
	assert.Equal(t, day("2021-01-04"), windows[0].End)
	assert.Equal(t, day("2021-01-03"), windows[1].End)
	assert.Equal(t, day("2021-01-02"), windows[2].End)
	for _, w := range windows {
		assert.Equal(t, day("2021-01-01"), w.Start)
	}

	assert.Empty(t, Windows(planner.Interval{Start: day("2021-01-01"), End: day("2021-01-01")}))
}

func TestFirstValid(t *testing.T) {
	var tried []int
	got, err := FirstValid([]int{1, 2, 3, 4}, func(c int) (string, error) {
		tried = append(tried, c)
		if c == 1 {
			return "", ErrImageNotFound
		}
		return fmt.Sprintf("image-%d", c), nil
	}, func(r string) error {
		if r == "image-2" {
			return errors.New("cloudy")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "image-3", got)
	assert.Equal(t, []int{1, 2, 3}, tried)
}

func TestFirstValidExhausted(t *testing.T) {
	_, err := FirstValid([]int{1, 2}, func(c int) (int, error) { return c, nil }, func(int) error {
		return errors.New("invalid")
	})
	assert.True(t, errors.Is(err, ErrImageNotFound))

	_, err = FirstValid([]int{}, func(c int) (int, error) { return c, nil }, func(int) error { return nil })
	assert.True(t, errors.Is(err, ErrImageNotFound))
}

func TestFirstValidStopsOnHardError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := FirstValid([]int{1, 2, 3}, func(c int) (int, error) {
		calls++
		return 0, boom
	}, func(int) error { return nil })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestValidTIFF(t *testing.T) {
	assert.NoError(t, ValidTIFF(tiff))
	assert.NoError(t, ValidTIFF([]byte("MM\x00*big endian")))
	assert.True(t, errors.Is(ValidTIFF(nil), ErrImageNotFound))
	assert.Error(t, ValidTIFF([]byte(`{"error": "no data"}`)))
}

func TestCollectionByName(t *testing.T) {
	c, err := CollectionByName("sentinel-2-l1c")
	require.NoError(t, err)
	assert.Contains(t, c.Bands, "B10")

	_, err = CollectionByName("landsat")
	assert.Error(t, err)
}

type fakeCopernicus struct {
	token    *httptest.Server
	process  *httptest.Server
	requests atomic.Int32

	mu      sync.Mutex
	windows []string
}

func (f *fakeCopernicus) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.windows...)
}

func newFakeCopernicus(t *testing.T, respond func(n int32, to string) (int, []byte)) *fakeCopernicus {
	f := &fakeCopernicus{}
	f.token = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		id, _, _ := r.BasicAuth()
		if id == "" {
			id = r.Form.Get("client_id")
		}
		if id == "revoked" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "token-` + id + `", "token_type": "bearer", "expires_in": 3600}`))
	}))
	f.process = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.requests.Add(1)
		var payload struct {
			Input struct {
				Data []struct {
					Type       string `json:"type"`
					DataFilter struct {
						TimeRange struct {
							From string `json:"from"`
							To   string `json:"to"`
						} `json:"timeRange"`
					} `json:"dataFilter"`
				} `json:"data"`
			} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Bearer token-good", r.Header.Get("Authorization"))
		to := payload.Input.Data[0].DataFilter.TimeRange.To
		f.mu.Lock()
		f.windows = append(f.windows, to)
		f.mu.Unlock()
		status, body := respond(n, to)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(func() {
		f.token.Close()
		f.process.Close()
	})
	return f
}

func (f *fakeCopernicus) client(creds ...properties.Credential) *Client {
	return NewClient(properties.Copernicus{
		Credentials: creds,
		TokenURL:    f.token.URL,
		ProcessURL:  f.process.URL,
	}, properties.Fetch{Attempts: 3, RetryWait: time.Millisecond}, Sentinel2L2A)
}

var cellBound = orb.Bound{Min: orb.Point{-122.43, 37.75}, Max: orb.Point{-122.39, 37.79}}

func TestFetchTile(t *testing.T) {
	f := newFakeCopernicus(t, func(n int32, to string) (int, []byte) {
		return http.StatusOK, tiff
	})
	c := f.client(properties.Credential{ClientID: "good", ClientSecret: "s"})

	image, err := c.FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")})
	require.NoError(t, err)
	assert.Equal(t, tiff, image)
	assert.Equal(t, []string{"2021-01-31T00:00:00Z"}, f.seen())
}

func TestFetchTileShrinksWindow(t *testing.T) {
	f := newFakeCopernicus(t, func(n int32, to string) (int, []byte) {
		if n < 3 {
			return http.StatusOK, []byte{}
		}
		return http.StatusOK, tiff
	})
	c := f.client(properties.Credential{ClientID: "revoked", ClientSecret: "s"}, properties.Credential{ClientID: "good", ClientSecret: "s"})

	image, err := c.FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")})
	require.NoError(t, err)
	assert.Equal(t, tiff, image)
	assert.Equal(t, []string{"2021-01-31T00:00:00Z", "2021-01-30T00:00:00Z", "2021-01-29T00:00:00Z"}, f.seen())
}

func TestFetchTileNotFound(t *testing.T) {
	f := newFakeCopernicus(t, func(n int32, to string) (int, []byte) {
		return http.StatusOK, nil
	})
	c := f.client(properties.Credential{ClientID: "good", ClientSecret: "s"})

	_, err := c.FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-04")})
	assert.True(t, errors.Is(err, ErrImageNotFound))
	assert.Len(t, f.seen(), 3)
}

func TestFetchTileRetriesServerErrors(t *testing.T) {
	f := newFakeCopernicus(t, func(n int32, to string) (int, []byte) {
		if n == 1 {
			return http.StatusServiceUnavailable, []byte("busy")
		}
		return http.StatusOK, tiff
	})
	c := f.client(properties.Credential{ClientID: "good", ClientSecret: "s"})

	_, err := c.FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.requests.Load())
}

func TestFetchTileBadRequest(t *testing.T) {
	f := newFakeCopernicus(t, func(n int32, to string) (int, []byte) {
		return http.StatusBadRequest, []byte("bad evalscript")
	})
	c := f.client(properties.Credential{ClientID: "good", ClientSecret: "s"})

	_, err := c.FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrImageNotFound))
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestFetchTileUnauthorized(t *testing.T) {
	f := newFakeCopernicus(t, func(n int32, to string) (int, []byte) {
		return http.StatusOK, tiff
	})
	c := f.client(properties.Credential{ClientID: "revoked", ClientSecret: "s"})

	_, err := c.FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")})
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, int32(0), f.requests.Load())

	_, err = (&Client{}).FetchTile(context.Background(), "9q8yy", cellBound, planner.Interval{Start: day("2021-01-01"), End: day("2021-01-31")})
	assert.Error(t, err)
}

func TestCalculatePixels(t *testing.T) {
	assert.Equal(t, 1, calculatePixels(0.00001, 10))
	assert.Equal(t, 444, calculatePixels(0.04, 10))
	assert.Equal(t, 2500, calculatePixels(1, 10))
}
