/*-------------------------------------------------------------------------
 *
 * store.go
 *    Persisted operation artifacts
 *
 * One msgpack artifact per verb plus a schema.sql snapshot. Files are
 * written to a staging file in the same directory, synced, renamed into
 * place and made read-only, so readers see either the old or the new
 * artifact and never a partial one.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/registry/store.go
 *
 *-------------------------------------------------------------------------
 */

package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/neurondb/NeuronDynamic/internal/generator"
)

/* ArtifactVersion is bumped whenever the artifact layout changes */
const ArtifactVersion = 1

/* SchemaSnapshotFile is the DDL snapshot published next to the artifacts */
const SchemaSnapshotFile = "schema.sql"

const readOnlyMode fs.FileMode = 0o444

/* Artifact is the persisted form of one verb's descriptors */
type Artifact struct {
	Version     int                              `msgpack:"version"`
	Verb        generator.Kind                   `msgpack:"verb"`
	Descriptors []*generator.OperationDescriptor `msgpack:"descriptors"`
	Failures    []string                         `msgpack:"failures"`
}

/* Store reads and writes artifacts in one directory */
type Store struct {
	dir string
}

/* NewStore creates a store rooted at dir, creating the directory */
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory '%s': %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

/* Dir returns the artifacts directory */
func (s *Store) Dir() string {
	return s.dir
}

/* Path returns the artifact path of a verb */
func (s *Store) Path(verb generator.Kind) string {
	return filepath.Join(s.dir, string(verb)+".msgpack")
}

/* Exists reports whether a published artifact is present */
func (s *Store) Exists(verb generator.Kind) bool {
	info, err := os.Stat(s.Path(verb))
	return err == nil && info.Mode().IsRegular()
}

/* Encode serializes an artifact deterministically (map keys sorted) */
func Encode(a *Artifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.SetOmitEmpty(true)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("failed to encode %s artifact: %w", a.Verb, err)
	}
	return buf.Bytes(), nil
}

/* Publish atomically replaces the artifact of a.Verb */
func (s *Store) Publish(a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	return s.writeAtomic(s.Path(a.Verb), data)
}

/* Load reads the artifact of a verb */
func (s *Store) Load(verb generator.Kind) (*Artifact, error) {
	data, err := os.ReadFile(s.Path(verb))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", verb, err)
	}
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode %s artifact '%s': %w", verb, s.Path(verb), err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("%s artifact has version %d, expected %d", verb, a.Version, ArtifactVersion)
	}
	return &a, nil
}

/* PublishSchema atomically replaces the schema.sql snapshot */
func (s *Store) PublishSchema(ddl string) error {
	return s.writeAtomic(filepath.Join(s.dir, SchemaSnapshotFile), []byte(ddl))
}

func (s *Store) writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file for '%s': %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write staging file for '%s': %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync staging file for '%s': %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close staging file for '%s': %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish '%s': %w", path, err)
	}
	if err = os.Chmod(path, readOnlyMode); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to mark '%s' read-only: %w", path, err)
	}
	return nil
}
