// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import "strings"

const unknown = "unknown"

// Device classes.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// marker maps a user-agent substring to a label. Order matters: the first hit wins.
type marker struct {
	needle string
	label  string
}

var browserMarkers = []marker{
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"samsungbrowser/", "Samsung Internet"},
	{"firefox/", "Firefox"},
	{"fxios/", "Firefox"},
	{"crios/", "Chrome"},
	{"chrome/", "Chrome"},
	{"safari/", "Safari"},
	{"curl/", "curl"},
	{"postman", "Postman"},
}

var osMarkers = []marker{
	{"windows", "Windows"},
	{"iphone", "iOS"},
	{"ipad", "iPadOS"},
	{"android", "Android"},
	{"mac os x", "macOS"},
	{"cros", "ChromeOS"},
	{"linux", "Linux"},
}

// ParseDevice derives a coarse [Device] from a User-Agent header.
// Unknown parts are reported as "unknown"; an empty header yields all unknowns.
func ParseDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return Device{Browser: unknown, OS: unknown, Class: unknown}
	}

	return Device{
		Browser: match(ua, browserMarkers),
		OS:      match(ua, osMarkers),
		Class:   classify(ua),
	}
}

func match(ua string, markers []marker) string {
	for _, m := range markers {
		if strings.Contains(ua, m.needle) {
			return m.label
		}
	}
	return unknown
}

func classify(ua string) string {
	switch {
	case strings.Contains(ua, "bot") || strings.Contains(ua, "spider") || strings.Contains(ua, "crawl"):
		return DeviceBot
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}
