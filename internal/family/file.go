package family

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk YAML shape.
type fileConfig struct {
	Members     []Member     `yaml:"members"`
	Resources   []Resource   `yaml:"resources"`
	Constraints []Constraint `yaml:"constraints"`
}

// FileDirectory serves household configuration from a YAML file and
// hot-reloads it when the file changes.
type FileDirectory struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu  sync.RWMutex
	cfg fileConfig
}

// NewFileDirectory loads the configuration file and returns a directory
// over it. Call Watch to enable hot-reload and Close to release the
// watcher.
func NewFileDirectory(path string, logger *zap.Logger) (*FileDirectory, error) {
	d := &FileDirectory{
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDirectory) reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read family config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse family config: %w", err)
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.logger.Info("Loaded family configuration",
		zap.String("path", d.path),
		zap.Int("members", len(cfg.Members)),
		zap.Int("resources", len(cfg.Resources)),
		zap.Int("constraints", len(cfg.Constraints)),
	)
	return nil
}

// Watch starts watching the config file for changes. A failed reload keeps
// the previous configuration.
func (d *FileDirectory) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which breaks
	// per-file watches.
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	d.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(d.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := d.reload(); err != nil {
					d.logger.Warn("Family config reload failed, keeping previous",
						zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("Family config watcher error", zap.Error(err))
			case <-d.stopCh:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (d *FileDirectory) Close() error {
	close(d.stopCh)
	if d.watcher != nil {
		return d.watcher.Close()
	}
	return nil
}

func (d *FileDirectory) Members(ctx context.Context) ([]Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Member(nil), d.cfg.Members...), nil
}

func (d *FileDirectory) MemberByName(ctx context.Context, name string) (*Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.cfg.Members {
		if strings.EqualFold(m.Name, name) {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *FileDirectory) Resources(ctx context.Context) ([]Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Resource(nil), d.cfg.Resources...), nil
}

func (d *FileDirectory) ResourceByName(ctx context.Context, name string) (*Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.cfg.Resources {
		if strings.EqualFold(r.Name, name) {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *FileDirectory) ConstraintsFor(ctx context.Context, memberID string) ([]Constraint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Constraint
	for _, c := range d.cfg.Constraints {
		if !c.Active {
			continue
		}
		if c.MemberID == "" || c.MemberID == memberID {
			out = append(out, c)
		}
	}
	return out, nil
}
