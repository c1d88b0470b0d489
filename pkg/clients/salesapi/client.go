package salesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/rafaeyza/salestrack/internal/config"
	"github.com/rafaeyza/salestrack/internal/domain/models"
)

// ErrUnreachable marks a transport-level failure: the request never produced
// an HTTP response. The submission pipeline treats it as "offline".
var ErrUnreachable = errors.New("sales api unreachable")

// ServerError is a response the server actually produced with a non-2xx
// status. It is never treated as offline.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("sales api error: status=%d, message=%s", e.Status, e.Message)
}

// IsNetworkError reports whether err means the server could not be reached,
// as opposed to the server rejecting the request.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// Client exposes the ingestion API operations used by the agent.
type Client interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	LastFinalStock(ctx context.Context, customerID, productID string) (int, error)
	GeofenceTolerance(ctx context.Context) (float64, error)
	SubmitVisit(ctx context.Context, sub Submission) (string, error)
	Ping(ctx context.Context) error
}

// Submission is the wire shape of one visit: the pipeline builds it from the
// draft and the replayer rebuilds it from a queued entry, so both paths send
// the identical multipart body.
type Submission struct {
	Token      string
	CustomerID string
	Latitude   float64
	Longitude  float64
	Lines      []models.InventoryLine
	Photo      []byte
	PhotoName  string
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a sales API client using the provided configuration values.
func NewClient(cfg config.APIConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetTimeout(cfg.Timeout)

	return &APIClient{httpClient: restyClient}
}

// apiError represents an ingestion API error payload.
type apiError struct {
	Error string `json:"error"`
}

type visitResponse struct {
	ID string `json:"id"`
}

type lastStockResponse struct {
	FinalStock int `json:"finalStock"`
}

type toleranceResponse struct {
	ToleranceMeters float64 `json:"toleranceMeters"`
}

// GetCustomer fetches one customer with its registered coordinates.
func (c *APIClient) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	result := new(models.Customer)
	if err := c.get(ctx, "/api/customers/"+id, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListProducts fetches the product catalog, including barcodes for scan
// matching.
func (c *APIClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	var result []models.Product
	if err := c.get(ctx, "/api/products", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// LastFinalStock returns the finalStock recorded on the customer's most
// recent visit for the product, or 0 when there is none.
func (c *APIClient) LastFinalStock(ctx context.Context, customerID, productID string) (int, error) {
	result := new(lastStockResponse)
	if err := c.get(ctx, fmt.Sprintf("/api/visits/last-stock/%s/%s", customerID, productID), result); err != nil {
		return 0, err
	}
	return result.FinalStock, nil
}

// GeofenceTolerance reads the server-side tolerance setting.
func (c *APIClient) GeofenceTolerance(ctx context.Context) (float64, error) {
	result := new(toleranceResponse)
	if err := c.get(ctx, "/api/settings/geofence", result); err != nil {
		return 0, err
	}
	return result.ToleranceMeters, nil
}

// SubmitVisit delivers one visit as a multipart form and returns the
// server-assigned visit identifier.
func (c *APIClient) SubmitVisit(ctx context.Context, sub Submission) (string, error) {
	inventory, err := json.Marshal(sub.Lines)
	if err != nil {
		return "", fmt.Errorf("marshal inventory: %w", err)
	}

	photoName := sub.PhotoName
	if photoName == "" {
		photoName = "attendance.jpg"
	}

	result := new(visitResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":          sub.Token,
			"customerId":     sub.CustomerID,
			"salesLatitude":  strconv.FormatFloat(sub.Latitude, 'f', -1, 64),
			"salesLongitude": strconv.FormatFloat(sub.Longitude, 'f', -1, 64),
			"inventory":      string(inventory),
		}).
		SetFileReader("attendancePhoto", photoName, bytes.NewReader(sub.Photo)).
		SetResult(result).
		SetError(apiErr).
		Post("/api/visits")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", &ServerError{Status: resp.StatusCode(), Message: apiErr.Error}
	}

	return result.ID, nil
}

// Ping probes the ingestion service health endpoint. Used by the connectivity
// monitor to detect online/offline transitions.
func (c *APIClient) Ping(ctx context.Context) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return &ServerError{Status: resp.StatusCode(), Message: "health check failed"}
	}
	return nil
}

func (c *APIClient) get(ctx context.Context, path string, result any) error {
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return &ServerError{Status: resp.StatusCode(), Message: apiErr.Error}
	}

	return nil
}
