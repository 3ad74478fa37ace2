package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/types"
)

// loadManifest 接受 Manifest 文件路径或目录中的 file_id
func loadManifest(ctx context.Context, ref string) (*core.Manifest, error) {
	data, err := os.ReadFile(ref)
	if err == nil {
		m, err := core.DecodeManifest(data, "")
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", ref, err)
		}
		return m, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	m, err := HB.Catalog.GetManifest(ctx, types.FileID(ref))
	if err != nil {
		return nil, fmt.Errorf("%q is neither a manifest file nor a cataloged file_id: %w", ref, err)
	}
	return m, nil
}
