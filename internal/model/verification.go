package model

import "time"

type LocationFix struct {
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	CapturedAt time.Time
	Provider   string
	IsMock     bool
	DeviceInfo map[string]string
}

type SocialProof struct {
	Platform string
	PostURL  string
	Caption  string
	Tags     []string
}
