package slot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/magiskboot"
)

// Classifier determines the patch status and content hash of boot images.
// Each call unpacks into its own directory under WorkDir, removed on return.
type Classifier struct {
	Tool    magiskboot.Tool
	WorkDir string
	Logger  *zap.Logger
}

func (c *Classifier) Classify(ctx context.Context, image string) (Classification, error) {
	image, err := filepath.Abs(image)
	if err != nil {
		return Classification{}, fmt.Errorf("resolve image path: %w", err)
	}

	if err := os.MkdirAll(c.WorkDir, 0o700); err != nil {
		return Classification{}, fmt.Errorf("create work dir %s: %w", c.WorkDir, err)
	}
	dir, err := os.MkdirTemp(c.WorkDir, "classify-*")
	if err != nil {
		return Classification{}, fmt.Errorf("create classify dir: %w", err)
	}
	defer c.cleanup(dir)

	code, err := c.Tool.Unpack(ctx, dir, image)
	if err != nil {
		return Classification{}, err
	}

	if _, err := os.Stat(filepath.Join(dir, magiskboot.RamdiskFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Classification{}, fmt.Errorf("classify %s (unpack exit %d): %w", image, code, ErrRamdiskMissing)
		}
		return Classification{}, fmt.Errorf("stat ramdisk: %w", err)
	}

	test, err := c.Tool.TestRamdisk(ctx, dir)
	if err != nil {
		return Classification{}, err
	}

	var (
		status PatchStatus
		raw    string
	)
	switch test {
	case magiskboot.TestStock:
		status = Stock
		raw, err = c.Tool.SHA1(ctx, dir, image)
	case magiskboot.TestPatched:
		status = Patched
		raw, err = c.Tool.RamdiskSHA1(ctx, dir)
	default:
		return Classification{}, fmt.Errorf("classify %s: ramdisk test exit %d: %w", image, test, ErrInvalidBootImage)
	}
	if err != nil {
		return Classification{}, fmt.Errorf("classify %s: %w: %w", image, ErrInvalidBootImage, err)
	}

	hash, err := digest.Parse(raw)
	if err != nil {
		return Classification{}, fmt.Errorf("classify %s: %w: %w", image, ErrInvalidBootImage, err)
	}

	return Classification{Status: status, Hash: hash}, nil
}

func (c *Classifier) cleanup(dir string) {
	for _, name := range []string{magiskboot.RamdiskFile, magiskboot.KernelFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger().Warn("remove unpack artifact", zap.String("path", filepath.Join(dir, name)), zap.Error(err))
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		c.logger().Warn("remove classify dir", zap.String("dir", dir), zap.Error(err))
	}
}

func (c *Classifier) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
