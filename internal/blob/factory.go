package blob

import (
	"context"
	"fmt"

	"hemocount/internal/config"
	"hemocount/internal/infra/blob/fs"
	"hemocount/internal/infra/blob/memory"
	"hemocount/internal/infra/blob/s3"
)

// Open selects a Store implementation from configuration. An empty driver
// defaults to the filesystem under cfg.FSRoot.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
