package model

import (
	"time"

	"gorm.io/gorm"
)

/*

User is a data model for a social network member

Id: primary key, use to identify a user
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

Name: display name, can be changed, don't need to be unique
Username: unique handle
Email: unique login email
PasswordHash: argon2id encoded hash, never serialized
GoogleId: subject id from Google sign-in, empty for password accounts
Birthday: optional, used by the sensitive-content age gate
ProfileImage: avatar URL in the media store

TwoFactorSecret: TOTP secret, set when the user enables app 2FA
TwoFactorRecoveryCodes: comma separated one-time codes
TwoFactorConfirmedAt: set once any 2FA method is confirmed
EmailTwoFactorEnabled: email-code 2FA toggle

The follow graph lives in the follows table (model.Follow); it is queried
directly rather than through associations.

*/

type User struct {
	Id                 string         `json:"id" gorm:"primaryKey"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-"`
	Name               string         `json:"name"`
	Username           string         `json:"username" gorm:"uniqueIndex"`
	Email              string         `json:"email" gorm:"uniqueIndex"`
	PasswordHash       string         `json:"-"`
	GoogleId           string         `json:"-" gorm:"index"`
	PhoneNumber        string         `json:"phone_number"`
	Birthday           *time.Time     `json:"birthday,omitempty"`
	BirthdayVisibility bool           `json:"birthday_visibility"`
	Bio                string         `json:"bio"`
	ProfileImage       string         `json:"profile_image"`

	TwoFactorSecret        string     `json:"-"`
	TwoFactorRecoveryCodes string     `json:"-"`
	TwoFactorConfirmedAt   *time.Time `json:"two_factor_confirmed_at"`
	EmailTwoFactorEnabled  bool       `json:"email_two_factor_enabled"`
}

// IsAdult reports whether the user is at least 18 years old. A user without a
// stored birthday is never considered adult, which keeps sensitive content
// hidden from them.
func (u *User) IsAdult(now time.Time) bool {
	if u == nil || u.Birthday == nil {
		return false
	}
	adultAt := u.Birthday.AddDate(18, 0, 0)
	return !now.Before(adultAt)
}
