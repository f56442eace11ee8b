package dish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const profileExt = ".json"

// FileRepository stores each profile as <dir>/<dish_id>.json.
type FileRepository struct {
	dir string
}

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(dishID string) (string, error) {
	if err := ValidateID(dishID); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, dishID+profileExt), nil
}

func (r *FileRepository) Get(ctx context.Context, dishID string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := r.path(dishID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeProfile(data)
}

// Save writes to a temp file in the same directory and renames it into
// place, so a reader never sees a half written profile.
func (r *FileRepository) Save(ctx context.Context, profile *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := r.path(profile.DishID)
	if err != nil {
		return err
	}

	data, err := encodeProfile(profile)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, "."+profile.DishID+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), p)
}

func (r *FileRepository) Delete(ctx context.Context, dishID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := r.path(dishID)
	if err != nil {
		return err
	}

	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (r *FileRepository) List(ctx context.Context) ([]*Profile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), profileExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dishID := strings.TrimSuffix(name, profileExt)
		p, err := r.Get(ctx, dishID)
		if err != nil {
			slog.Warn("skipping unreadable dish profile", "dish_id", dishID, "error", err)
			continue
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}
