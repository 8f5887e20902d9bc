package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/parts_backend/config"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"gorm.io/gorm"
)

// TeamMember backs the member directory used to resolve an assignee email
// to a display name.
type TeamMember struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTeamMember struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

func (input *NewTeamMember) validate(ctx context.Context, id int) error {
	if !utils.IsValidEmail(input.Email) {
		return &ValidationError{Field: "email", Message: "invalid email"}
	}
	if input.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	return utils.ValidateUnique[TeamMember](ctx, "email", input.Email, id)
}

func CreateTeamMember(ctx context.Context, input *NewTeamMember) (*TeamMember, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	member := TeamMember{
		Email:    input.Email,
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func UpdateTeamMember(ctx context.Context, id int, input *NewTeamMember) (*TeamMember, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var member TeamMember
	if err := db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	oldEmail := member.Email
	member.Email = input.Email
	member.Name = input.Name
	if err := db.WithContext(ctx).Save(&member).Error; err != nil {
		return nil, err
	}

	// drop stale directory cache entries
	config.RemoveRedisKey("memberName:"+oldEmail, "memberName:"+member.Email)

	return &member, nil
}

// DeactivateTeamMember retires a member from the directory. The row is kept
// so ledger entries recorded under the member's name stay attributable.
func DeactivateTeamMember(ctx context.Context, id int) (*TeamMember, error) {
	db := config.GetDB()

	var member TeamMember
	if err := db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	member.IsActive = utils.NewFalse()
	if err := db.WithContext(ctx).Save(&member).Error; err != nil {
		return nil, err
	}

	config.RemoveRedisKey("memberName:" + member.Email)

	return &member, nil
}

// ResolveMemberName looks up a member's display name by email, redis first,
// db on miss. Returns ErrorRecordNotFound for unknown or inactive members.
func ResolveMemberName(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", &ValidationError{Field: "email", Message: "email is required"}
	}

	redisKey := "memberName:" + email
	var name string
	exists, err := config.GetRedisObject(redisKey, &name)
	if err == nil && exists && name != "" {
		return name, nil
	}

	db := config.GetDB()
	var member TeamMember
	err = db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", utils.ErrorRecordNotFound
		}
		return "", err
	}

	if err := config.SetRedisObject(redisKey, member.Name, time.Hour); err != nil {
		return member.Name, nil
	}
	return member.Name, nil
}
