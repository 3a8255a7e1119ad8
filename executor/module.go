package executor

//go:generate env GOOS=wasip1 GOARCH=wasm go build -o testdata/guest.wasm ../cmd/webfdw-guest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Module is a compiled-to-WASM wrapper guest.
type Module interface {
	// Name identifies the module. Used as the cache key for compiled modules.
	Name() string

	// Binary returns the WASM bytes.
	Binary() []byte
}

type wasmModule struct {
	name string
	wasm []byte
}

func (m *wasmModule) Name() string   { return m.name }
func (m *wasmModule) Binary() []byte { return m.wasm }

// NewModule wraps wasm bytes under the given name.
func NewModule(name string, wasm []byte) Module {
	return &wasmModule{name: name, wasm: wasm}
}

// LoadModule reads a guest from disk. The module name combines the file
// name with a content hash, so a rebuilt guest is never served from a
// stale compiled entry.
func LoadModule(path string) (Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	sum := sha256.Sum256(wasm)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewModule(base+"-"+hex.EncodeToString(sum[:6]), wasm), nil
}
