// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package view

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// TrackingPoint is one surveillance event as rendered on the tracking map
// and table. Points are unique by EventID within a working set.
type TrackingPoint struct {
	EventID      string    `json:"eventId"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Timestamp    time.Time `json:"timestamp"`
	CameraLabel  string    `json:"cameraLabel"`
	AddressLabel string    `json:"addressLabel"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

// DecodeTrackingPoint parses a live envelope payload into a TrackingPoint.
func DecodeTrackingPoint(payload []byte) (TrackingPoint, error) {
	var p TrackingPoint
	if err := json.Unmarshal(payload, &p); err != nil {
		return TrackingPoint{}, fmt.Errorf("decode tracking point: %w", err)
	}
	if p.EventID == "" {
		return TrackingPoint{}, fmt.Errorf("decode tracking point: missing eventId")
	}
	return p, nil
}

// Summary is the one-line toast text for a freshly arrived event.
func (p TrackingPoint) Summary() string {
	label := p.CameraLabel
	if label == "" {
		label = p.AddressLabel
	}
	if label == "" {
		label = p.EventID
	}
	return fmt.Sprintf("New event at %s (%s)", label, p.Timestamp.Local().Format("15:04:05"))
}
