package boardcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/syncclipboard-go/types"
)

func TestMDNSTextRoundTrip(t *testing.T) {
	self := types.Device{ID: "dev-1", Name: "laptop", Port: 5033, InstanceID: 42, Capabilities: []string{"clipboard", "file"}}
	d, ok := deviceFromTXT("laptop", "192.168.1.5", 5033, mdnsText(self, "1.0.0"))
	require.True(t, ok)
	assert.Equal(t, types.Device{ID: "dev-1", Name: "laptop", IP: "192.168.1.5", Port: 5033, InstanceID: 42, Capabilities: []string{"clipboard", "file"}}, d)
}

func TestDeviceFromTXTWithoutID(t *testing.T) {
	_, ok := deviceFromTXT("x", "10.0.0.1", 1, []string{"version=1", "garbage"})
	assert.False(t, ok)
}

func TestAdvertiseRequiresPort(t *testing.T) {
	_, err := AdvertiseMDNS(types.Device{ID: "scanner"}, "1.0.0")
	assert.Error(t, err)
}
