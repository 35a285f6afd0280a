package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/a8m/envsubst"
	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"go.viam.com/gpioheader/logging"
)

// Read reads a config from the given file, substituting environment variables first.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "failed to validate Config")
	}
	return &cfg, nil
}

// watchSettle is how long a config file must stay untouched before it is re-read.
const watchSettle = 100 * time.Millisecond

// Watch calls onChange with the freshly read config every time the file at filePath is written,
// until ctx ends. The directory is watched so editors that replace the file are seen too. A burst
// of writes produces one call once the file settles.
func Watch(ctx context.Context, filePath string, logger logging.Logger, onChange func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create config watcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warnw("failed to close config watcher", "error", err)
		}
	}()

	target := filepath.Clean(filePath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", filePath)
	}
	logger.Debugw("watching config", "path", target)

	settled := debounce.New(watchSettle)
	for {
		select {
		case <-ctx.Done():
			settled(func() {})
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			settled(func() {
				if ctx.Err() != nil {
					return
				}
				cfg, err := Read(target)
				onChange(cfg, err)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("config watcher error", "error", err)
		}
	}
}

// Schema returns the JSON schema of a config file.
func Schema() ([]byte, error) {
	return json.MarshalIndent(jsonschema.Reflect(&Config{}), "", "  ")
}
