package testutil

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/hookdeck/relaycursor/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func CheckIntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
}

func Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
}

func CreateTestLogger(t *testing.T) *logging.Logger {
	return logging.Wrap(zaptest.NewLogger(t), zap.InfoLevel)
}

// RandomString returns a hex string of the given length.
func RandomString(length int) string {
	b := make([]byte, length+2)
	rand.Read(b)
	return fmt.Sprintf("%x", b)[2 : length+2]
}

// MockOS serves environment variables and files from memory for
// config.ParseWithOS.
type MockOS struct {
	Env   map[string]string
	Files map[string][]byte
}

func (m *MockOS) Getenv(key string) string { return m.Env[key] }

func (m *MockOS) Environ() []string {
	out := make([]string, 0, len(m.Env))
	for k, v := range m.Env {
		out = append(out, k+"="+v)
	}
	return out
}

func (m *MockOS) Stat(name string) (os.FileInfo, error) {
	if _, ok := m.Files[name]; ok {
		return nil, nil
	}
	return nil, fs.ErrNotExist
}

func (m *MockOS) ReadFile(name string) ([]byte, error) {
	if data, ok := m.Files[name]; ok {
		return data, nil
	}
	return nil, fs.ErrNotExist
}
