// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Txn is a wrapper around a single database transaction. All writes for one
// admin event go through one Txn so that a partial write is never observable.
type Txn struct {
	db       *Database
	tx       *gorm.DB
	lock     sync.Mutex
	finished bool
}

func NewTxn(db *Database) *Txn {
	return &Txn{
		db: db,
		tx: db.db.Begin(),
	}
}

// DB returns the parent database instance
func (t *Txn) DB() *Database {
	return t.db
}

// Handle returns the underlying transaction handle for use with store operations
func (t *Txn) Handle() *gorm.DB {
	return t.tx
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if result := t.tx.Commit(); result.Error != nil {
		return result.Error
	}
	return nil
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	t.finished = true
	if result := t.tx.Rollback(); result.Error != nil {
		return result.Error
	}
	return nil
}
