package model

import "time"

/*

Follow is one directed edge of the social graph

FollowerId follows FollowingId. No self edges, one row per pair.

*/

type Follow struct {
	FollowerId  string    `json:"follower_id" gorm:"primaryKey"`
	FollowingId string    `json:"following_id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Follow) TableName() string {
	return "follows"
}
