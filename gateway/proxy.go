package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/utils"
)

// apiPrefix is stripped before a request is forwarded to a service
const apiPrefix = "/api"

// headers that describe a single hop and are never forwarded
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// ServiceClient handles HTTP communication with one service
type ServiceClient struct {
	name    string
	baseURL string
	client  *resty.Client
}

// ServiceClients holds all service clients
type ServiceClients struct {
	Auth         *ServiceClient
	Tenant       *ServiceClient
	Availability *ServiceClient
	Notifier     *ServiceClient
}

// NewServiceClient creates a new service client
func NewServiceClient(name, baseURL string) *ServiceClient {
	return &ServiceClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  resty.New().SetTimeout(30 * time.Second),
	}
}

// ProxyRequest forwards the request to the service with the /api prefix removed
func (sc *ServiceClient) ProxyRequest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to read request body")
		return
	}

	req := sc.client.R().
		SetContext(c.Request.Context()).
		SetQueryString(c.Request.URL.RawQuery)
	for key, values := range c.Request.Header {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("X-Forwarded-For", c.ClientIP())
	if len(body) > 0 {
		req.SetBody(body)
	}

	resp, err := req.Execute(c.Request.Method, sc.baseURL+strings.TrimPrefix(c.Request.URL.Path, apiPrefix))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"service": sc.name,
			"path":    c.Request.URL.Path,
			"error":   err,
		}).Error("Service request failed")
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to communicate with service")
		return
	}

	for key, values := range resp.Header() {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Data(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())
}

// HealthCheck checks if a service is healthy
func (sc *ServiceClient) HealthCheck(ctx context.Context) error {
	resp, err := sc.client.R().SetContext(ctx).Get(sc.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode())
	}
	return nil
}

// forPath picks the service owning an /api path by its first segment after the prefix
func (scs *ServiceClients) forPath(path string) *ServiceClient {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, apiPrefix), "/")
	segment, _, _ := strings.Cut(rest, "/")
	switch segment {
	case "auth":
		return scs.Auth
	case "tenants":
		return scs.Tenant
	case "availability", "bookings":
		return scs.Availability
	case "notifier", "stats":
		return scs.Notifier
	}
	return nil
}

// handleProxy forwards /api requests to the owning service
func handleProxy(services *ServiceClients) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := services.forPath(c.Request.URL.Path)
		if sc == nil {
			utils.NotFoundResponse(c, "Unknown API route")
			return
		}
		sc.ProxyRequest(c)
	}
}

func (scs *ServiceClients) all() []*ServiceClient {
	return []*ServiceClient{scs.Auth, scs.Tenant, scs.Availability, scs.Notifier}
}

// GetServiceStatus checks every service concurrently and reports whether all are healthy
func (scs *ServiceClients) GetServiceStatus(ctx context.Context) (map[string]interface{}, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		healthy = true
		status  = make(map[string]interface{})
	)
	for _, sc := range scs.all() {
		wg.Add(1)
		go func(sc *ServiceClient) {
			defer wg.Done()
			err := sc.HealthCheck(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				status[sc.name] = map[string]interface{}{
					"healthy": false,
					"error":   err.Error(),
				}
				return
			}
			status[sc.name] = map[string]interface{}{"healthy": true}
		}(sc)
	}
	wg.Wait()

	return status, healthy
}

// handleHealth aggregates the health of every service
func handleHealth(services *ServiceClients) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, healthy := services.GetServiceStatus(c.Request.Context())
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
				Success: false,
				Data:    status,
				Error:   "One or more services are unavailable",
			})
			return
		}
		utils.OKResponse(c, "API Gateway is healthy", status)
	}
}
