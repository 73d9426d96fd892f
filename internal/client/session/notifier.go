package session

import "time"

// AuthEvent описывает событие ошибки аутентификации: какой-либо
// исходящий запрос получил 401 от удаленного API
type AuthEvent struct {
	At     time.Time
	Reason string
	Status int
}

// Notifier - канал уведомлений об ошибках аутентификации.
// Заменяет одиночный callback: подписчик (страж маршрутов) подписывается
// один раз, повторные подписки возвращают тот же канал и не могут
// молча перетереть друг друга.
type Notifier struct {
	ch chan AuthEvent
}

// NewNotifier создает notifier с небольшим буфером
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan AuthEvent, 8)}
}

// Subscribe возвращает канал событий. Все вызовы возвращают один канал.
func (n *Notifier) Subscribe() <-chan AuthEvent {
	return n.ch
}

// Publish отправляет событие, никогда не блокируясь.
// Если подписчик не успевает читать, событие отбрасывается:
// потеря дубликата "сессия невалидна" безопасна.
func (n *Notifier) Publish(event AuthEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case n.ch <- event:
	default:
	}
}
