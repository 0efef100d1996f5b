package models

import (
	"time"

	"gorm.io/gorm"
)

// TripRole is the role a user holds on a trip.
type TripRole string

const (
	RoleOwner  TripRole = "owner"
	RoleEditor TripRole = "editor"
	RoleViewer TripRole = "viewer"
)

// CollaboratorStatus tracks an invite through its lifecycle.
type CollaboratorStatus string

const (
	InvitePending  CollaboratorStatus = "pending"
	InviteAccepted CollaboratorStatus = "accepted"
	InviteDeclined CollaboratorStatus = "declined"
)

// Trip is the subset of the trip record the realtime layer reads to authorize room joins.
type Trip struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	Title         string         `json:"title" gorm:"not null"`
	Destination   string         `json:"destination"`
	CreatorID     string         `json:"creatorId" gorm:"column:creator_id;index;not null"`
	Collaborators []Collaborator `json:"collaborators" gorm:"foreignKey:TripID"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Trip) TableName() string {
	return "trips"
}

// Collaborator links an invited user to a trip.
type Collaborator struct {
	ID        uint               `json:"id" gorm:"primaryKey;autoIncrement"`
	TripID    string             `json:"tripId" gorm:"column:trip_id;not null;uniqueIndex:idx_trip_user"`
	UserID    string             `json:"userId" gorm:"column:user_id;not null;uniqueIndex:idx_trip_user"`
	Role      TripRole           `json:"role" gorm:"not null;default:'viewer'"`
	Status    CollaboratorStatus `json:"status" gorm:"not null;default:'pending'"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (Collaborator) TableName() string {
	return "trip_collaborators"
}
