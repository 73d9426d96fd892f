package iocli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

// Println и Printf переадресуют в fmt, проверяем что вызовы не падают
func TestPrintlnAndPrintf(t *testing.T) {
	stdio := NewStdio()

	assert.NotPanics(t, func() {
		stdio.Println("hello", "world")
	})
	assert.NotPanics(t, func() {
		stdio.Printf("test %d %s", 1, "abc")
	})
}

// Тест ReadInput: читаем из pipe вместо os.Stdin
func TestReadInput(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NoError(t, err)

	go func() {
		_, _ = w.Write([]byte("dispatcher1\n"))
		_ = w.Close()
	}()

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	os.Stdin = r

	stdio := NewStdio()
	result, err := stdio.ReadInput("Login: ")
	assert.NoError(t, err)
	assert.Equal(t, "dispatcher1", result)
}

func TestReadInput_TrimsWhitespace(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NoError(t, err)

	go func() {
		_, _ = w.Write([]byte("  dispatcher1  \n"))
		_ = w.Close()
	}()

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	os.Stdin = r

	stdio := NewStdio()
	result, err := stdio.ReadInput("Login: ")
	assert.NoError(t, err)
	assert.Equal(t, "dispatcher1", result)
}
