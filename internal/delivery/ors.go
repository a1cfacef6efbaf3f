package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultORSBaseURL = "https://api.openrouteservice.org"
	matrixPath        = "/v2/matrix/driving-car"
	geocodePath       = "/geocode/search"
	requestTimeout    = 10 * time.Second
	maxResponseBytes  = 1 << 20
	geocodeSuffix     = ", Port Harcourt, Rivers, Nigeria"
)

// Port Harcourt city centre, used to bias geocoding results.
var geocodeFocus = Coordinates{Lng: 7.0498, Lat: 4.8156}

var errMissingKey = errors.New("ORS_API_KEY not set")

// ORSClient talks to OpenRouteService for distances and geocoding.
type ORSClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func NewORSClient(baseURL, apiKey string, logger *zap.Logger) *ORSClient {
	if baseURL == "" {
		baseURL = DefaultORSBaseURL
	}
	return &ORSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   requestTimeout,
		},
		breaker: circuitbreaker.New[[]byte]("openrouteservice", circuitbreaker.DefaultSettings(), logger),
		logger:  logger,
	}
}

type matrixRequest struct {
	Locations [][2]float64 `json:"locations"`
	Metrics   []string     `json:"metrics"`
	Units     string       `json:"units"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
}

func (c *ORSClient) Quote(ctx context.Context, origin, dest Coordinates) (Quote, error) {
	if err := dest.Validate(); err != nil {
		return Quote{}, err
	}

	body, err := json.Marshal(matrixRequest{
		Locations: [][2]float64{origin.pair(), dest.pair()},
		Metrics:   []string{"distance"},
		Units:     "km",
	})
	if err != nil {
		return Quote{}, fmt.Errorf("marshal matrix request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.baseURL+matrixPath, body)
	if err != nil {
		return Quote{}, err
	}

	var resp matrixResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Quote{}, &domain.DependencyError{Dependency: "delivery estimator", Err: fmt.Errorf("decode matrix response: %w", err)}
	}
	if len(resp.Distances) == 0 || len(resp.Distances[0]) < 2 || resp.Distances[0][1] == nil {
		return Quote{}, ErrNoRoute
	}
	km := *resp.Distances[0][1]
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return Quote{}, ErrNoRoute
	}

	return Quote{DistanceKm: km, Fee: Fee(km)}, nil
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode resolves a street address in Port Harcourt. Unknown addresses
// return domain.ErrNotFound.
func (c *ORSClient) Geocode(ctx context.Context, address string) (Place, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Place{}, domain.NewValidationError("address", "Address is required")
	}
	query := address + geocodeSuffix

	q := url.Values{}
	q.Set("text", query)
	q.Set("size", "1")
	q.Set("focus.point.lat", fmt.Sprint(geocodeFocus.Lat))
	q.Set("focus.point.lon", fmt.Sprint(geocodeFocus.Lng))

	raw, err := c.do(ctx, http.MethodGet, c.baseURL+geocodePath+"?"+q.Encode(), nil)
	if err != nil {
		return Place{}, err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Place{}, &domain.DependencyError{Dependency: "geocoder", Err: fmt.Errorf("decode geocode response: %w", err)}
	}
	if len(resp.Features) == 0 || len(resp.Features[0].Geometry.Coordinates) < 2 {
		return Place{}, fmt.Errorf("address %w", domain.ErrNotFound)
	}

	f := resp.Features[0]
	label := f.Properties.Label
	if label == "" {
		label = query
	}
	return Place{
		Label: label,
		At:    Coordinates{Lng: f.Geometry.Coordinates[0], Lat: f.Geometry.Coordinates[1]},
	}, nil
}

type orsError struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// do runs one request through the breaker. Only transport failures and 5xx
// responses count against the breaker.
func (c *ORSClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, &domain.DependencyError{Dependency: "delivery estimator", Err: errMissingKey}
	}

	var clientErr error
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("openrouteservice returned %d: %s", resp.StatusCode, orsMessage(data))
		case resp.StatusCode >= 400:
			clientErr = fmt.Errorf("openrouteservice returned %d: %s", resp.StatusCode, orsMessage(data))
			return nil, nil
		}
		return data, nil
	})
	if err != nil {
		c.logger.Warn("openrouteservice request failed", zap.String("path", pathOf(endpoint)), zap.Error(err))
		return nil, &domain.DependencyError{Dependency: "delivery estimator", Err: err}
	}
	if clientErr != nil {
		c.logger.Warn("openrouteservice rejected request", zap.String("path", pathOf(endpoint)), zap.Error(clientErr))
		return nil, &domain.DependencyError{Dependency: "delivery estimator", Err: clientErr}
	}
	return raw, nil
}

func orsMessage(data []byte) string {
	var e orsError
	if json.Unmarshal(data, &e) == nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return "ORS request failed"
}

func pathOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		return u.Path
	}
	return endpoint
}
