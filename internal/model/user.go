package model

import "time"

type UserRole string

const (
	UserRoleUser   UserRole = "user"
	UserRoleSeller UserRole = "seller"
	UserRoleAdmin  UserRole = "admin"
)

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"size:50;not null;uniqueIndex:uk_users_username"`
	Email        string    `gorm:"size:100;not null;uniqueIndex:uk_users_email"`
	PasswordHash string    `gorm:"column:password_hash;size:200;not null"`
	Phone        *string   `gorm:"size:20;uniqueIndex:uk_users_phone"`
	RealName     string    `gorm:"column:real_name;size:50"`
	StudentID    string    `gorm:"column:student_id;size:20"`
	Avatar       string    `gorm:"size:512"`
	Role         UserRole  `gorm:"size:16;not null;default:user"`
	CreditScore  int       `gorm:"column:credit_score;not null;default:100"`
	IsVerified   bool      `gorm:"column:is_verified;not null;default:false"`
	FirebaseUID  *string   `gorm:"column:firebase_uid;size:128;uniqueIndex:uk_users_firebase_uid"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func (u *User) IsSeller() bool {
	return u.Role == UserRoleSeller || u.Role == UserRoleAdmin
}
