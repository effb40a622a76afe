package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/moyoez/syncclipboard-go/api/models"
	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

const ServiceName = "SyncClipboard"

// ServerCapabilities are reported by GET /api/discovery.
var ServerCapabilities = []string{"clipboard", "file", "history"}

// DeviceLister exposes the discovered peer snapshot.
type DeviceLister interface {
	List() []types.Device
}

type DiscoveryInfo struct {
	Service      string   `json:"service"`
	Version      string   `json:"version"`
	DeviceName   string   `json:"device_name"`
	DeviceID     string   `json:"device_id"`
	Capabilities []string `json:"capabilities"`
}

type DiscoveryController struct {
	self    types.Device
	version string
	// baseURL is encoded into the pairing QR code.
	baseURL string
	devices DeviceLister
	clients *models.ClientTracker
}

func NewDiscoveryController(self types.Device, version, baseURL string, devices DeviceLister, clients *models.ClientTracker) *DiscoveryController {
	return &DiscoveryController{self: self, version: version, baseURL: baseURL, devices: devices, clients: clients}
}

func (ctrl *DiscoveryController) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, DiscoveryInfo{
		Service:      ServiceName,
		Version:      ctrl.version,
		DeviceName:   ctrl.self.Name,
		DeviceID:     ctrl.self.ID,
		Capabilities: ServerCapabilities,
	})
}

func (ctrl *DiscoveryController) HandleDevices(c *gin.Context) {
	devices := []types.Device{}
	if ctrl.devices != nil {
		devices = append(devices, ctrl.devices.List()...)
	}
	c.JSON(http.StatusOK, devices)
}

func (ctrl *DiscoveryController) HandleConnected(c *gin.Context) {
	clients := []models.ConnectedClient{}
	if ctrl.clients != nil {
		clients = append(clients, ctrl.clients.List()...)
	}
	c.JSON(http.StatusOK, clients)
}

// HandleQRCode renders the server URL as a PNG for pairing mobile clients.
func (ctrl *DiscoveryController) HandleQRCode(c *gin.Context) {
	png, err := qrcode.Encode(ctrl.baseURL, qrcode.Medium, 256)
	if err != nil {
		tool.DefaultLogger.Errorf("[API] qrcode encode failed: %v", err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("qrcode encode failed"))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
