// Package fingerprint собирает стабильный отпечаток устройства.
// Отпечаток используется как секретный материал для деривации ключа
// шифрования сохраненных учетных данных: запись, созданная на одном
// устройстве, не может быть расшифрована на другом.
// Отпечаток нигде не сохраняется - он каждый раз собирается заново.
package fingerprint

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Файлы с machine-id в порядке приоритета
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// Collect собирает отпечаток устройства из доступных источников:
// machine-id, hostname, ОС, архитектура, смещение часового пояса, локаль.
// Компоненты соединяются через "|". Изменение любого компонента
// (например, смена локали на уровне ОС) делает отпечаток другим.
func Collect() string {
	components := []string{
		machineID(),
		hostname(),
		runtime.GOOS,
		runtime.GOARCH,
		tzOffset(),
		locale(),
	}
	return strings.Join(components, "|")
}

// machineID читает системный machine-id.
// Если файл недоступен (не-Linux, контейнер без machine-id),
// используется hostname как менее стабильный запасной вариант.
func machineID() string {
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	return hostname()
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return name
}

// tzOffset возвращает текущее смещение локального часового пояса в минутах
func tzOffset() string {
	_, offsetSeconds := time.Now().Zone()
	return fmt.Sprintf("%d", offsetSeconds/60)
}

// locale возвращает локаль из окружения
func locale() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return "C"
}
