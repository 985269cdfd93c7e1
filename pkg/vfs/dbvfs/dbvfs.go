/*
 * Copyright (c) 2021. Ant Financial. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package dbvfs is a bbolt-backed reference VFS backend: a worked
// example of persisting a virtual mount's metadata across restarts.
// Like pkg/vfs/memvfs it is not part of the CORE (spec.md §1 scopes
// concrete VFS implementations out of it); it exists to give the
// teacher's database and content-addressing stack a home.
package dbvfs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/pkg/vfs"
)

const databaseFileName = "sandboxfs.db"

var (
	nodesBucket = []byte("nodes")
	blobsBucket = []byte("blobs")
)

// record is the JSON-encoded value stored per path in nodesBucket.
type record struct {
	Mode     uint32 `json:"mode"`
	Nlink    uint32 `json:"nlink"`
	Mtime    int64  `json:"mtime"`
	LinkDest string `json:"link_dest,omitempty"`
	// BlobDigest names a blob in blobsBucket holding this node's
	// symlink target, content-addressed so two symlinks to the same
	// target share storage. Empty for a non-symlink node.
	BlobDigest string `json:"blob_digest,omitempty"`
}

// VFS is a bbolt-backed virtual backend. One VFS owns one database
// file; it is safe for concurrent use (bbolt serializes writers and
// allows concurrent readers internally).
type VFS struct {
	db *bolt.DB
}

// New opens or creates the database under rootDir.
func New(rootDir string) (*VFS, error) {
	if err := os.MkdirAll(rootDir, 0700); err != nil {
		return nil, errors.Wrap(err, "create vfs root dir")
	}
	db, err := bolt.Open(filepath.Join(rootDir, databaseFileName), 0600, &bolt.Options{Timeout: 4 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	v := &VFS{db: db}
	if err := v.init(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize database")
	}
	return v, nil
}

func (v *VFS) init() error {
	return v.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(nodesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	})
}

// Close releases the underlying database file.
func (v *VFS) Close() error { return v.db.Close() }

func (*VFS) IsVirtual() bool { return true }

func (v *VFS) Stat(_ context.Context, path string) (vfs.StatRecord, error) {
	return v.stat(path, true)
}

func (v *VFS) Lstat(_ context.Context, path string) (vfs.StatRecord, error) {
	return v.stat(path, false)
}

func (v *VFS) stat(path string, followSymlink bool) (vfs.StatRecord, error) {
	var rec record
	err := v.db.View(func(tx *bolt.Tx) error {
		r, err := v.lookup(tx, path)
		if err != nil {
			return err
		}
		for followSymlink && r.LinkDest != "" {
			next, err := v.lookup(tx, r.LinkDest)
			if err != nil {
				return err
			}
			r = next
		}
		rec = r
		return nil
	})
	if err != nil {
		return vfs.StatRecord{}, err
	}
	return vfs.StatRecord{
		Mode:  rec.Mode,
		Nlink: uint64(rec.Nlink),
		Mtim:  unix.Timespec{Sec: rec.Mtime},
	}, nil
}

func (v *VFS) lookup(tx *bolt.Tx, path string) (record, error) {
	raw := tx.Bucket(nodesBucket).Get([]byte(path))
	if raw == nil {
		return record{}, vfs.NewError(vfs.NotFound, nil)
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return record{}, vfs.NewError(vfs.IoError, err)
	}
	return r, nil
}

func (v *VFS) Readlink(_ context.Context, path string) (string, error) {
	var target string
	err := v.db.View(func(tx *bolt.Tx) error {
		r, err := v.lookup(tx, path)
		if err != nil {
			return err
		}
		if r.LinkDest == "" {
			return vfs.NewError(vfs.NotFound, nil)
		}
		target = r.LinkDest
		return nil
	})
	return target, err
}

func (v *VFS) Symlink(_ context.Context, target, linkpath string) error {
	blob := digest.FromString(target)
	return v.db.Update(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(nodesBucket)
		if nodes.Get([]byte(linkpath)) != nil {
			return vfs.NewError(vfs.AlreadyExists, nil)
		}
		if err := tx.Bucket(blobsBucket).Put([]byte(blob.String()), []byte(target)); err != nil {
			return vfs.NewError(vfs.IoError, err)
		}
		r := record{
			Mode:       unix.S_IFLNK | 0777,
			Nlink:      1,
			Mtime:      time.Now().Unix(),
			LinkDest:   target,
			BlobDigest: blob.String(),
		}
		data, err := json.Marshal(r)
		if err != nil {
			return vfs.NewError(vfs.IoError, err)
		}
		return nodes.Put([]byte(linkpath), data)
	})
}

func (v *VFS) Link(_ context.Context, oldpath, newpath string) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		nodes := tx.Bucket(nodesBucket)
		old, err := v.lookup(tx, oldpath)
		if err != nil {
			return err
		}
		if nodes.Get([]byte(newpath)) != nil {
			return vfs.NewError(vfs.AlreadyExists, nil)
		}
		old.Nlink++
		data, err := json.Marshal(old)
		if err != nil {
			return vfs.NewError(vfs.IoError, err)
		}
		if err := nodes.Put([]byte(oldpath), data); err != nil {
			return err
		}
		return nodes.Put([]byte(newpath), data)
	})
}
