package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	modelerrors "github.com/the-lean-crate/miner/pkg/errors"
	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/model"
)

var (
	bucketCrates        = []byte("crates")
	bucketCrateVersions = []byte("crate_versions")
	bucketTasks         = []byte("tasks")
	bucketResults       = []byte("results")
	bucketMeta          = []byte("meta")
	bucketReportsDone   = []byte("reports_done")

	allBuckets = [][]byte{
		bucketCrates,
		bucketCrateVersions,
		bucketTasks,
		bucketResults,
		bucketMeta,
		bucketReportsDone,
	}
)

// retry policy for bolt.ErrTimeout, bbolt's stand-in for a "database busy"
// condition: exponential backoff starting at 1ms, doubling each attempt,
// capped at 250ms per sleep, with a 100s total budget before giving up.
const (
	retryInitialDelay = time.Millisecond
	retryMaxDelay     = 250 * time.Millisecond
	retryTotalBudget  = 100 * time.Second
)

// BoltStore implements Store on top of an embedded bbolt database.
type BoltStore struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// NewBoltStore opens (creating if absent) the bbolt database under dataDir
// and ensures all six tables exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "miner.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: retryMaxDelay})
	if err != nil {
		return nil, modelerrors.StorageIO("failed to open database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, modelerrors.StorageIO("failed to initialize buckets", err)
	}

	return &BoltStore{db: db, logger: log.WithComponent("storage")}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// withRetry runs fn, retrying with exponential backoff while bbolt reports
// ErrTimeout (lock acquisition failed), up to retryTotalBudget total.
func (s *BoltStore) withRetry(fn func() error) error {
	delay := retryInitialDelay
	deadline := time.Now().Add(retryTotalBudget)
	for {
		err := fn()
		if err == nil || !errors.Is(err, bolt.ErrTimeout) {
			return err
		}
		if time.Now().After(deadline) {
			return modelerrors.Timeout(retryTotalBudget, "store busy for too long")
		}
		s.logger.Warn().Dur("delay", delay).Msg("store busy, retrying")
		time.Sleep(delay)
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	return s.withRetry(func() error { return s.db.Update(fn) })
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	return s.withRetry(func() error { return s.db.View(fn) })
}

// --- Packages -----------------------------------------------------------

func (s *BoltStore) GetPackage(name string) (*model.Package, error) {
	var out *model.Package
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCrates).Get([]byte(name))
		if data == nil {
			return nil
		}
		var p model.Package
		if err := json.Unmarshal(data, &p); err != nil {
			return modelerrors.ParseFailure("decode package", err)
		}
		out = &p
		return nil
	})
	return out, err
}

// IteratePackages visits up to limit packages in key order starting just
// after afterName ("" to start from the beginning), returning the name of
// the last package visited so the caller can resume from there on the next
// call. It does not wrap around itself: once fewer than limit packages come
// back, it is up to the caller to start again from "".
func (s *BoltStore) IteratePackages(afterName string, limit int, fn func(name string, pkg model.Package) error) (string, error) {
	var lastName string
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCrates).Cursor()
		var k, v []byte
		if afterName == "" {
			k, v = c.First()
		} else {
			c.Seek([]byte(afterName))
			k, v = c.Next()
		}
		for count := 0; k != nil && count < limit; k, v = c.Next() {
			var pkg model.Package
			if err := json.Unmarshal(v, &pkg); err != nil {
				return modelerrors.ParseFailure("decode package", err)
			}
			if err := fn(string(k), pkg); err != nil {
				return err
			}
			lastName = string(k)
			count++
		}
		return nil
	})
	return lastName, err
}

// UpsertPackage folds version into the stored Package for name, creating it
// if absent, then re-sorting the version list.
func (s *BoltStore) UpsertPackage(name string, version *model.PackageVersion) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCrates)
		existing := &model.Package{}
		if data := b.Get([]byte(name)); data != nil {
			if err := json.Unmarshal(data, existing); err != nil {
				return modelerrors.ParseFailure("decode package", err)
			}
		}
		merged := model.MergePackage(existing, model.PackageFromVersion(version))
		data, err := json.Marshal(merged)
		if err != nil {
			return modelerrors.ParseFailure("encode package", err)
		}
		return b.Put([]byte(name), data)
	})
}

// --- PackageVersions ------------------------------------------------------

func packageVersionKey(name, version string) []byte {
	return []byte(name + ":" + version)
}

func (s *BoltStore) GetPackageVersion(name, version string) (*model.PackageVersion, error) {
	var out *model.PackageVersion
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCrateVersions).Get(packageVersionKey(name, version))
		if data == nil {
			return nil
		}
		var v model.PackageVersion
		if err := json.Unmarshal(data, &v); err != nil {
			return modelerrors.ParseFailure("decode package version", err)
		}
		out = &v
		return nil
	})
	return out, err
}

// IteratePackageVersions visits up to limit package versions in key order
// (i.e. grouped by package name, then version string) starting just after
// afterKey, returning the key of the last version visited so the caller can
// resume from there on the next call.
func (s *BoltStore) IteratePackageVersions(afterKey string, limit int, fn func(pv model.PackageVersion) error) (string, error) {
	var lastKey string
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCrateVersions).Cursor()
		var k, v []byte
		if afterKey == "" {
			k, v = c.First()
		} else {
			c.Seek([]byte(afterKey))
			k, v = c.Next()
		}
		for count := 0; k != nil && count < limit; k, v = c.Next() {
			var pv model.PackageVersion
			if err := json.Unmarshal(v, &pv); err != nil {
				return modelerrors.ParseFailure("decode package version", err)
			}
			if err := fn(pv); err != nil {
				return err
			}
			lastKey = string(k)
			count++
		}
		return nil
	})
	return lastKey, err
}

// UpsertPackageVersion replaces whatever is stored for this version; crate
// version records are append-scoped in their source of truth (the registry
// index) so the latest observation always wins outright.
func (s *BoltStore) UpsertPackageVersion(v *model.PackageVersion) error {
	return s.update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return modelerrors.ParseFailure("encode package version", err)
		}
		return tx.Bucket(bucketCrateVersions).Put(packageVersionKey(v.Name, v.Version), data)
	})
}

func (s *BoltStore) CountPackageVersions() (uint64, error) {
	var n uint64
	err := s.view(func(tx *bolt.Tx) error {
		n = uint64(tx.Bucket(bucketCrateVersions).Stats().KeyN)
		return nil
	})
	return n, err
}

// --- Tasks ------------------------------------------------------------

func taskKey(process, name, version string) []byte {
	return []byte(process + ":" + name + ":" + version)
}

func (s *BoltStore) GetTask(process, name, version string) (*model.Task, error) {
	var out *model.Task
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get(taskKey(process, name, version))
		if data == nil {
			return nil
		}
		var t model.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return modelerrors.ParseFailure("decode task", err)
		}
		out = &t
		return nil
	})
	return out, err
}

// UpsertTask merges incoming task state with whatever is stored, per
// TaskState.MergeWith, then stamps StoredAt with the current time. Every
// other field on Task is replaced outright by the incoming value.
func (s *BoltStore) UpsertTask(process, name, version string, task model.Task) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		key := taskKey(process, name, version)
		merged := task
		if data := b.Get(key); data != nil {
			var existing model.Task
			if err := json.Unmarshal(data, &existing); err != nil {
				return modelerrors.ParseFailure("decode task", err)
			}
			state, err := existing.State.MergeWith(task.State)
			if err != nil {
				return err
			}
			merged.State = state
		}
		merged.StoredAt = time.Now()
		data, err := json.Marshal(merged)
		if err != nil {
			return modelerrors.ParseFailure("encode task", err)
		}
		return b.Put(key, data)
	})
}

// IterateTasks calls fn once per stored task. Iteration order is bbolt's
// lexicographic key order, i.e. grouped by process, then name, then version.
func (s *BoltStore) IterateTasks(fn func(process, name, version string, task model.Task) error) error {
	return s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			parts := strings.SplitN(string(k), ":", 3)
			if len(parts) != 3 {
				return modelerrors.Bug("malformed task key " + string(k))
			}
			var t model.Task
			if err := json.Unmarshal(v, &t); err != nil {
				return modelerrors.ParseFailure("decode task", err)
			}
			return fn(parts[0], parts[1], parts[2], t)
		})
	})
}

// --- Results ------------------------------------------------------------

func resultKey(name, version string, kind model.TaskResultKind, discriminant string) []byte {
	key := name + ":" + version + ":" + strconv.Itoa(int(kind))
	if discriminant != "" {
		key += ":" + discriminant
	}
	return []byte(key)
}

func (s *BoltStore) GetResult(name, version string, kind model.TaskResultKind, discriminant string) (*model.TaskResult, error) {
	var out *model.TaskResult
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketResults).Get(resultKey(name, version, kind, discriminant))
		if data == nil {
			return nil
		}
		var r model.TaskResult
		if err := json.Unmarshal(data, &r); err != nil {
			return modelerrors.ParseFailure("decode result", err)
		}
		out = &r
		return nil
	})
	return out, err
}

// PutResult writes a result outright; results are append-only-variant
// snapshots of a single completed task attempt and are never merged.
func (s *BoltStore) PutResult(name, version string, kind model.TaskResultKind, discriminant string, result model.TaskResult) error {
	return s.update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(result)
		if err != nil {
			return modelerrors.ParseFailure("encode result", err)
		}
		return tx.Bucket(bucketResults).Put(resultKey(name, version, kind, discriminant), data)
	})
}

// --- Meta -----------------------------------------------------------------

func (s *BoltStore) GetContext(day string) (model.Context, error) {
	var out model.Context
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(day))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &out)
	})
	return out, err
}

// MergeContext adds delta to the stored Context for day.
func (s *BoltStore) MergeContext(day string, delta model.Context) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		var existing model.Context
		if data := b.Get([]byte(day)); data != nil {
			if err := json.Unmarshal(data, &existing); err != nil {
				return modelerrors.ParseFailure("decode context", err)
			}
		}
		merged := existing.Add(delta)
		data, err := json.Marshal(merged)
		if err != nil {
			return modelerrors.ParseFailure("encode context", err)
		}
		return b.Put([]byte(day), data)
	})
}

// --- ReportsDone ------------------------------------------------------------

func (s *BoltStore) IsReportDone(key string) (bool, error) {
	var done bool
	err := s.view(func(tx *bolt.Tx) error {
		done = tx.Bucket(bucketReportsDone).Get([]byte(key)) != nil
		return nil
	})
	return done, err
}

func (s *BoltStore) MarkReportDone(key string) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReportsDone).Put([]byte(key), []byte{1})
	})
}
