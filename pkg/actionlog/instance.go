package actionlog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ensureInstanceID returns the id stored under ~/.actionlog, creating it on
// first use. Any filesystem failure falls back to an ephemeral id.
func ensureInstanceID() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return uuid.NewString()
	}

	dir := filepath.Join(homeDir, ".actionlog")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return uuid.NewString()
	}

	idFile := filepath.Join(dir, "id")
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	_ = os.WriteFile(idFile, []byte(id), 0644)
	return id
}
