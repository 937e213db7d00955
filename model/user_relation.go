package model

import (
	"time"
)

/*

UserFavorite is a directed favorite edge between two users

UserId: source user id
TargetId: favorited user id
CreatedAt: time when relation is created

At most one row per (UserId, TargetId) pair, enforced by the composite
primary key. No self-edges, rejected before any insert reaches the DB.

*/
type UserFavorite struct {
	UserId    string `gorm:"primaryKey"`
	TargetId  string `gorm:"primaryKey"`
	CreatedAt time.Time
}

/*

UserBlock is a directed block edge between two users

UserId: source user id
TargetId: blocked user id
CreatedAt: time when relation is created

*/
type UserBlock struct {
	UserId    string `gorm:"primaryKey"`
	TargetId  string `gorm:"primaryKey"`
	CreatedAt time.Time
}

/*

GymFavorite is a directed favorite edge from a user to a gym

UserId: source user id
GymId: favorited gym id, positive integers only
CreatedAt: time when relation is created

*/
type GymFavorite struct {
	UserId    string `gorm:"primaryKey"`
	GymId     int64  `gorm:"primaryKey"`
	CreatedAt time.Time
}
