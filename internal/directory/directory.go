// Package directory looks up user roles, capabilities and controller profiles.
package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/pfcontrol/stripsync/internal/model"
	"gorm.io/gorm"
)

// CapabilityEventController lets a user control any PFATC session.
const CapabilityEventController = "event_controller"

// Directory is the roles/profile collaborator.
type Directory interface {
	// Profile returns the user's profile. Unknown users yield a zero profile with UserID set.
	Profile(ctx context.Context, userID string) (model.ControllerProfile, error)
	HasCapability(ctx context.Context, userID, capability string) (bool, error)
}

// GormDirectory reads users and roles from PostgreSQL.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a GORM-backed directory.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) Profile(ctx context.Context, userID string) (model.ControllerProfile, error) {
	var u model.UserEntity
	err := d.db.WithContext(ctx).Preload("Roles").Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ControllerProfile{UserID: userID}, nil
	}
	if err != nil {
		return model.ControllerProfile{}, err
	}
	return profileFromEntity(&u), nil
}

func (d *GormDirectory) HasCapability(ctx context.Context, userID, capability string) (bool, error) {
	p, err := d.Profile(ctx, userID)
	if err != nil {
		return false, err
	}
	return hasCapability(p, capability), nil
}

func profileFromEntity(u *model.UserEntity) model.ControllerProfile {
	roles := append([]model.RoleEntity(nil), u.Roles...)
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Priority > roles[j].Priority })

	p := model.ControllerProfile{
		UserID:      u.ID,
		Username:    u.Username,
		Avatar:      u.Avatar,
		Rating:      u.Rating,
		EventBadges: splitList(u.EventBadges),
	}
	for _, r := range roles {
		p.Roles = append(p.Roles, model.RoleBadge{Name: r.Name, Color: r.Color, Icon: r.Icon})
		p.Capabilities = append(p.Capabilities, splitList(r.Capabilities)...)
	}
	return p
}

func hasCapability(p model.ControllerProfile, capability string) bool {
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// StaticDirectory is an in-memory directory for development and tests.
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[string]model.ControllerProfile
}

// NewStaticDirectory creates a directory preloaded with profiles.
func NewStaticDirectory(profiles ...model.ControllerProfile) *StaticDirectory {
	d := &StaticDirectory{profiles: make(map[string]model.ControllerProfile)}
	for _, p := range profiles {
		d.profiles[p.UserID] = p
	}
	return d
}

// Put inserts or replaces a profile.
func (d *StaticDirectory) Put(p model.ControllerProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.UserID] = p
}

func (d *StaticDirectory) Profile(_ context.Context, userID string) (model.ControllerProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.profiles[userID]; ok {
		return p, nil
	}
	return model.ControllerProfile{UserID: userID}, nil
}

func (d *StaticDirectory) HasCapability(ctx context.Context, userID, capability string) (bool, error) {
	p, _ := d.Profile(ctx, userID)
	return hasCapability(p, capability), nil
}
