package api

import "encoding/json"

// Response представляет универсальный конверт ответа FieldOps API.
// Поле Data заполнено при Success=true, Error — при Success=false.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload представляет ошибку внутри конверта ответа
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`    // машинный код ошибки
	Message string `json:"message,omitempty"` // человекочитаемое сообщение
}

// LoginRequest представляет запрос на аутентификацию оператора
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResponse представляет ответ на успешный логин
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`  // JWT access token
	RefreshToken string `json:"refreshToken"` // refresh token
	User         User   `json:"user"`         // профиль пользователя
}

// RefreshRequest представляет запрос на обновление access token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse представляет ответ с новым access token
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// User представляет профиль пользователя FieldOps (оператор, мастер, админ)
type User struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// DisplayName возвращает имя для отображения.
// Если имя не заполнено, используется login.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}
