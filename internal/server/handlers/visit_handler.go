package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/domain/models"
	"github.com/rafaeyza/salestrack/internal/repository/mongodb"
)

// VisitHandler serves the ingestion API consumed by the field agent.
type VisitHandler struct {
	repo              mongodb.Repository
	defaultToleranceM float64
	logger            *zap.Logger
}

// NewVisitHandler constructs the HTTP handler adapter.
func NewVisitHandler(repo mongodb.Repository, defaultToleranceM float64, logger *zap.Logger) *VisitHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitHandler{repo: repo, defaultToleranceM: defaultToleranceM, logger: logger}
}

// Create ingests one multipart visit submission. The inventory invariants are
// re-checked server-side; a duplicate idempotency token returns the stored
// visit's ID instead of creating a second one.
func (h *VisitHandler) Create(c *gin.Context) {
	customerID := c.PostForm("customerId")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customerId is required"})
		return
	}

	latitude, err := strconv.ParseFloat(c.PostForm("salesLatitude"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "salesLatitude is invalid"})
		return
	}
	longitude, err := strconv.ParseFloat(c.PostForm("salesLongitude"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "salesLongitude is invalid"})
		return
	}

	var lines []models.InventoryLine
	if err := json.Unmarshal([]byte(c.PostForm("inventory")), &lines); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inventory payload is invalid"})
		return
	}
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inventory must contain at least one line"})
		return
	}
	for _, line := range lines {
		if msg := line.Validate(); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
	}

	photo, photoName, err := readPhoto(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attendancePhoto is required"})
		return
	}

	token := c.PostForm("token")
	if token == "" {
		// Older clients did not send one; dedup is then best-effort only.
		token = uuid.NewString()
	}

	record, err := h.buildRecord(c, token, customerID, latitude, longitude, lines, photo, photoName)
	if err != nil {
		h.logger.Error("failed building visit record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store visit"})
		return
	}

	id, err := h.repo.InsertVisit(c.Request.Context(), *record)
	if err != nil {
		h.logger.Error("failed inserting visit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store visit"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *VisitHandler) buildRecord(c *gin.Context, token, customerID string, latitude, longitude float64,
	lines []models.InventoryLine, photo []byte, photoName string) (*models.VisitRecord, error) {

	products, err := h.repo.ListProducts(c.Request.Context())
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(products))
	for _, product := range products {
		prices[product.ID] = product.UnitPrice
	}

	record := models.VisitRecord{
		Token:          token,
		CustomerID:     customerID,
		SalesLatitude:  latitude,
		SalesLongitude: longitude,
		Photo:          photo,
		PhotoName:      photoName,
		Total:          decimal.Zero,
		CreatedAt:      time.Now().UTC(),
	}

	for _, line := range lines {
		sold := line.UnitsSold()
		subtotal := prices[line.ProductID].Mul(decimal.NewFromInt(int64(sold)))
		record.Inventory = append(record.Inventory, models.VisitLine{
			ProductID:    line.ProductID,
			InitialStock: line.InitialStock,
			AddedStock:   line.AddedStock,
			FinalStock:   line.FinalStock,
			Returns:      line.Returns,
			UnitsSold:    sold,
			Subtotal:     subtotal,
		})
		record.Total = record.Total.Add(subtotal)
	}

	return &record, nil
}

// LastStock returns the finalStock from the customer's most recent visit for
// a product, defaulting to 0 when no visit exists yet.
func (h *VisitHandler) LastStock(c *gin.Context) {
	customerID := c.Param("customerId")
	productID := c.Param("productId")

	finalStock, err := h.repo.LastFinalStock(c.Request.Context(), customerID, productID)
	if err != nil {
		if errors.Is(err, mongodb.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"finalStock": 0})
			return
		}
		h.logger.Error("failed reading last stock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read last stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"finalStock": finalStock})
}

// GetCustomer returns one customer with its registered coordinates.
func (h *VisitHandler) GetCustomer(c *gin.Context) {
	customer, err := h.repo.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mongodb.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "customer not found"})
			return
		}
		h.logger.Error("failed reading customer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read customer"})
		return
	}

	c.JSON(http.StatusOK, customer)
}

// ListProducts returns the product catalog.
func (h *VisitHandler) ListProducts(c *gin.Context) {
	products, err := h.repo.ListProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("failed listing products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, products)
}

// GeofenceSetting returns the tolerance the agent should enforce.
func (h *VisitHandler) GeofenceSetting(c *gin.Context) {
	tolerance, err := h.repo.GeofenceTolerance(c.Request.Context())
	if err != nil {
		if errors.Is(err, mongodb.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"toleranceMeters": h.defaultToleranceM})
			return
		}
		h.logger.Error("failed reading geofence setting", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read setting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"toleranceMeters": tolerance})
}

func readPhoto(c *gin.Context) ([]byte, string, error) {
	header, err := c.FormFile("attendancePhoto")
	if err != nil {
		return nil, "", err
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}
