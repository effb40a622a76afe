package types

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// PacketType is the wire discriminant of a discovery packet.
type PacketType string

const (
	PacketSearch       PacketType = "search"
	PacketAnnouncement PacketType = "announcement"
)

// ErrInvalidPacket is returned for datagrams that are not a discovery packet.
var ErrInvalidPacket = errors.New("invalid discovery packet")

// SearchPacket asks listening instances to announce themselves.
type SearchPacket struct {
	Version string
}

// AnnouncementPacket advertises a listening instance.
type AnnouncementPacket struct {
	DeviceID     string   `json:"device_id"`
	Alias        string   `json:"alias"`
	Port         uint16   `json:"port"`
	InstanceID   uint64   `json:"instance_id"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// DiscoveryPacket holds exactly one of Search or Announcement.
// Build it with NewSearchPacket or NewAnnouncementPacket.
type DiscoveryPacket struct {
	search       *SearchPacket
	announcement *AnnouncementPacket
}

func NewSearchPacket(version string) DiscoveryPacket {
	return DiscoveryPacket{search: &SearchPacket{Version: version}}
}

func NewAnnouncementPacket(a AnnouncementPacket) DiscoveryPacket {
	if a.Capabilities == nil {
		a.Capabilities = []string{}
	}
	return DiscoveryPacket{announcement: &a}
}

// AnnouncementFor builds the announcement a device sends about itself.
func AnnouncementFor(self Device, version string) DiscoveryPacket {
	return NewAnnouncementPacket(AnnouncementPacket{
		DeviceID:     self.ID,
		Alias:        self.Name,
		Port:         self.Port,
		InstanceID:   self.InstanceID,
		Version:      version,
		Capabilities: self.Clone().Capabilities,
	})
}

func (p DiscoveryPacket) Type() PacketType {
	if p.announcement != nil {
		return PacketAnnouncement
	}
	return PacketSearch
}

// Search returns the search payload, ok is false for announcements.
func (p DiscoveryPacket) Search() (SearchPacket, bool) {
	if p.search == nil {
		return SearchPacket{}, false
	}
	return *p.search, true
}

// Announcement returns the announcement payload, ok is false for searches.
func (p DiscoveryPacket) Announcement() (AnnouncementPacket, bool) {
	if p.announcement == nil {
		return AnnouncementPacket{}, false
	}
	return *p.announcement, true
}

// ToDevice converts an announcement received from ip into a Device.
func (a AnnouncementPacket) ToDevice(ip string) Device {
	caps := make([]string, len(a.Capabilities))
	copy(caps, a.Capabilities)
	return Device{
		ID:           a.DeviceID,
		Name:         a.Alias,
		IP:           ip,
		Port:         a.Port,
		InstanceID:   a.InstanceID,
		Capabilities: caps,
	}
}

type searchWire struct {
	Type    PacketType `json:"type"`
	Version *string    `json:"version,omitempty"`
}

type announcementWire struct {
	Type PacketType `json:"type"`
	AnnouncementPacket
}

type packetHeader struct {
	Type PacketType `json:"type"`
}

// EncodePacket serializes a packet with its "type" discriminant.
func EncodePacket(p DiscoveryPacket) ([]byte, error) {
	switch {
	case p.announcement != nil:
		return sonic.Marshal(announcementWire{Type: PacketAnnouncement, AnnouncementPacket: *p.announcement})
	case p.search != nil:
		w := searchWire{Type: PacketSearch}
		if p.search.Version != "" {
			v := p.search.Version
			w.Version = &v
		}
		return sonic.Marshal(w)
	default:
		return nil, fmt.Errorf("%w: empty packet", ErrInvalidPacket)
	}
}

// DecodePacket parses a datagram into a packet.
func DecodePacket(data []byte) (DiscoveryPacket, error) {
	var header packetHeader
	if err := sonic.Unmarshal(data, &header); err != nil {
		return DiscoveryPacket{}, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	switch header.Type {
	case PacketSearch:
		var w searchWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return DiscoveryPacket{}, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
		}
		version := ""
		if w.Version != nil {
			version = *w.Version
		}
		return NewSearchPacket(version), nil
	case PacketAnnouncement:
		var w announcementWire
		if err := sonic.Unmarshal(data, &w); err != nil {
			return DiscoveryPacket{}, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
		}
		if w.DeviceID == "" {
			return DiscoveryPacket{}, fmt.Errorf("%w: announcement without device_id", ErrInvalidPacket)
		}
		return NewAnnouncementPacket(w.AnnouncementPacket), nil
	default:
		return DiscoveryPacket{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPacket, header.Type)
	}
}
