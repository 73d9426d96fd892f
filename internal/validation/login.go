package validation

import (
	"fmt"
	"regexp"
)

// LoginPattern определяет допустимый формат логина оператора
// Латинские буквы (a-z, A-Z), цифры (0-9), точка, нижнее подчеркивание
// Длина: 3-64 символа
var LoginPattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,64}$`)

const (
	// MinLoginLen минимальная длина логина
	MinLoginLen = 3
	// MaxLoginLen максимальная длина логина
	MaxLoginLen = 64
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 6
)

// ValidateLogin проверяет, что логин соответствует требованиям FieldOps API
func ValidateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("login cannot be empty")
	}

	if len(login) < MinLoginLen {
		return fmt.Errorf("login must be at least %d characters long", MinLoginLen)
	}

	if len(login) > MaxLoginLen {
		return fmt.Errorf("login must not exceed %d characters", MaxLoginLen)
	}

	if !LoginPattern.MatchString(login) {
		return fmt.Errorf("login can only contain letters (a-z, A-Z), numbers (0-9), dots (.) and underscores (_)")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	return nil
}
