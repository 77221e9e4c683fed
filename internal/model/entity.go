package model

import "time"

// SessionEntity is the stored session row (GORM).
type SessionEntity struct {
	ID           string    `gorm:"size:64;primaryKey"`
	AccessID     string    `gorm:"size:128;not null"`
	ActiveRunway string    `gorm:"size:10"`
	AirportICAO  string    `gorm:"column:airport_icao;size:4;not null;index"`
	IsPFATC      bool      `gorm:"column:is_pfatc;not null;default:false"`
	ATIS         ATISState `gorm:"column:atis;type:jsonb;serializer:json"`
	CreatedBy    string    `gorm:"size:64"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`

	Flights []FlightEntity `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (SessionEntity) TableName() string { return "sessions" }

// FlightEntity is the stored flight row (GORM).
type FlightEntity struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	SessionID   string    `gorm:"size:64;not null;index"`
	Callsign    string    `gorm:"size:16"`
	Aircraft    string    `gorm:"size:8"`
	WTC         string    `gorm:"column:wtc;size:1"`
	FlightType  string    `gorm:"size:3"`
	Departure   string    `gorm:"size:4"`
	Arrival     string    `gorm:"size:4;index"`
	Alternate   string    `gorm:"size:4"`
	Route       string    `gorm:"type:text"`
	Runway      string    `gorm:"size:10"`
	SID         string    `gorm:"column:sid;size:16"`
	STAR        string    `gorm:"column:star;size:16"`
	CruisingFL  int       `gorm:"column:cruising_fl"`
	ClearedFL   int       `gorm:"column:cleared_fl"`
	Squawk      string    `gorm:"size:4"`
	Status      string    `gorm:"size:10"`
	Clearance   bool      `gorm:"not null;default:false"`
	Remark      string    `gorm:"type:text"`
	Gate        string    `gorm:"size:8"`
	Stand       string    `gorm:"size:8"`
	PDCRemarks  string    `gorm:"column:pdc_remarks;type:text"`
	Hidden      bool      `gorm:"not null;default:false"`
	AccessToken string    `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (FlightEntity) TableName() string { return "flights" }

// UserEntity is the read-only view of a platform user, used for controller profiles.
type UserEntity struct {
	ID          string `gorm:"size:64;primaryKey"`
	Username    string `gorm:"size:64"`
	Avatar      string `gorm:"type:text"`
	Rating      string `gorm:"size:8"`
	EventBadges string `gorm:"type:text"` // comma separated

	Roles []RoleEntity `gorm:"many2many:user_roles;joinForeignKey:UserID;joinReferences:RoleID"`
}

func (UserEntity) TableName() string { return "users" }

// RoleEntity is a named role with an optional capability list.
type RoleEntity struct {
	ID           int64  `gorm:"primaryKey"`
	Name         string `gorm:"size:64"`
	Color        string `gorm:"size:16"`
	Icon         string `gorm:"size:32"`
	Capabilities string `gorm:"type:text"` // comma separated
	Priority     int
}

func (RoleEntity) TableName() string { return "roles" }
