package store

import "github.com/pfcontrol/stripsync/internal/model"

// DemoSessions mirrors database/seeds/002_demo_sessions.sql for the memory driver.
func DemoSessions() []model.Session {
	return []model.Session{
		{ID: "demojfk1", AccessID: "demo-access-kjfk-0001", ActiveRunway: "22R", AirportICAO: "KJFK", IsPFATC: true},
		{ID: "demobos1", AccessID: "demo-access-kbos-0001", ActiveRunway: "27", AirportICAO: "KBOS", IsPFATC: true},
	}
}
