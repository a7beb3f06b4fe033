package connector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// FilesystemConnector is rooted at a base directory; every path is
// canonicalized and checked for containment before use, the same
// canonicalize-then-prefix-check pattern as helm's content-addressed blob
// store, generalized from a hash-addressed store to arbitrary
// read/write/delete paths.
type FilesystemConnector struct {
	root string
}

// NewFilesystemConnectorFactory closes over the sandbox root directory.
func NewFilesystemConnectorFactory(root string) Factory {
	return func(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
		if root == "" {
			root = filepath.Join(os.TempDir(), "edon-fs-sandbox")
		}
		if err := os.MkdirAll(root, 0750); err != nil {
			return nil, fmt.Errorf("filesystem: ensure sandbox root: %w", err)
		}
		return &FilesystemConnector{root: root}, nil
	}
}

// resolve canonicalizes a caller-supplied relative path and rejects any
// attempt to escape the sandbox root via ".." or an absolute path.
func (c *FilesystemConnector) resolve(requested string) (string, error) {
	cleaned := filepath.Clean("/" + requested)
	full := filepath.Join(c.root, cleaned)
	if !strings.HasPrefix(full, filepath.Clean(c.root)+string(os.PathSeparator)) && full != filepath.Clean(c.root) {
		return "", fmt.Errorf("filesystem: path %q escapes sandbox", requested)
	}
	return full, nil
}

func (c *FilesystemConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	path, _ := action.Params["path"].(string)
	if path == "" {
		return Result{OK: false, Error: "missing path"}, nil
	}
	resolved, err := c.resolve(path)
	if err != nil {
		return Result{OK: false, Error: err.Error()}, nil
	}

	switch action.Op {
	case "read":
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Result{OK: false, Error: fmt.Sprintf("read failed: %v", err)}, nil
		}
		return Result{OK: true, Output: map[string]any{"content": string(data)}}, nil

	case "write":
		content, _ := action.Params["content"].(string)
		if err := os.MkdirAll(filepath.Dir(resolved), 0750); err != nil {
			return Result{OK: false, Error: fmt.Sprintf("mkdir failed: %v", err)}, nil
		}
		if err := os.WriteFile(resolved, []byte(content), 0640); err != nil {
			return Result{OK: false, Error: fmt.Sprintf("write failed: %v", err)}, nil
		}
		return Result{OK: true, Output: map[string]any{"bytes_written": len(content)}}, nil

	case "delete":
		if err := os.Remove(resolved); err != nil {
			return Result{OK: false, Error: fmt.Sprintf("delete failed: %v", err)}, nil
		}
		return Result{OK: true}, nil

	case "export":
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Result{OK: false, Error: fmt.Sprintf("read failed: %v", err)}, nil
		}
		return Result{OK: true, Output: map[string]any{"content": string(data)}}, nil

	default:
		return Result{OK: false, Error: fmt.Sprintf("unsupported file op %q", action.Op)}, nil
	}
}
