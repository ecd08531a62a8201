package health

import (
	"context"
	"fmt"
	"os"

	"github.com/yourusername/keiba-insight/internal/dataset"
	"github.com/yourusername/keiba-insight/internal/models"
)

// DatasetChecker is ready once the past race data has been loaded.
func DatasetChecker(ds *dataset.Dataset) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		if ds == nil {
			return models.ErrDataUnavailable
		}
		return nil
	})
}

// DirectoryChecker is ready when dir exists and is a directory.
func DirectoryChecker(dir string) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	})
}
