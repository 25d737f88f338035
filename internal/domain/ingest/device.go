package ingest

import (
	"strings"

	"github.com/mileusna/useragent"

	"github.com/okian/footprint/internal/domain/model"
)

// Device types reported by ParseDevice.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// ParseDevice derives device type, OS and browser from a user agent.
// Missing OS and browser names are reported as "Unknown".
func ParseDevice(userAgent string) model.Device {
	if strings.TrimSpace(userAgent) == "" {
		return model.Device{Type: DeviceUnknown, OS: model.UnknownLocation, Browser: model.UnknownLocation}
	}
	ua := useragent.Parse(userAgent)
	d := model.Device{
		OS:         orUnknown(ua.OS),
		Browser:    orUnknown(ua.Name),
		DeviceName: ua.Device,
	}
	switch {
	case ua.Bot:
		d.Type = DeviceBot
	case ua.Tablet:
		d.Type = DeviceTablet
	case ua.Mobile:
		d.Type = DeviceMobile
	default:
		d.Type = DeviceDesktop
	}
	return d
}

func orUnknown(s string) string {
	if s == "" {
		return model.UnknownLocation
	}
	return s
}
