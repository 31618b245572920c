package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// Top level buckets. Invoices and both natural-key indexes hold one nested
// bucket per workspace.
var (
	invoicesBucket      = []byte("invoices")
	invoiceNumberBucket = []byte("invoice_numbers")
	fingerprintBucket   = []byte("fingerprints")
	workspacesBucket    = []byte("workspaces")
	correctionsBucket   = []byte("corrections")
)

// DB defines the interface for invoice and workspace persistence
type DB interface {
	DuplicateFinder

	// SaveInvoice inserts a new invoice. It fails with ErrDuplicateKey when
	// the id, invoice number or fingerprint is already taken in the workspace.
	SaveInvoice(inv *Invoice) error

	// UpdateInvoice replaces an existing invoice
	UpdateInvoice(inv *Invoice) error

	// RecordCorrection replaces an existing invoice and stores the
	// correction that came with the edit, atomically
	RecordCorrection(inv *Invoice, c *CorrectionLog) error

	// ListCorrections returns a workspace's corrections, oldest first
	ListCorrections(workspaceID string) ([]*CorrectionLog, error)

	// GetInvoice retrieves an invoice by workspace and ID
	GetInvoice(workspaceID, id string) (*Invoice, error)

	// ListInvoices returns all invoices of a workspace
	ListInvoices(workspaceID string) ([]*Invoice, error)

	// SaveWorkspace creates or replaces a workspace's category config
	SaveWorkspace(ws *Workspace) error

	// GetWorkspace retrieves a workspace by ID
	GetWorkspace(id string) (*Workspace, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{invoicesBucket, invoiceNumberBucket, fingerprintBucket, workspacesBucket, correctionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// workspaceBucket returns the nested bucket of a workspace, creating it when
// the transaction is writable
func workspaceBucket(tx *bbolt.Tx, parent []byte, workspaceID string) (*bbolt.Bucket, error) {
	root := tx.Bucket(parent)
	if !tx.Writable() {
		return root.Bucket([]byte(workspaceID)), nil
	}
	return root.CreateBucketIfNotExists([]byte(workspaceID))
}

// SaveInvoice inserts an invoice and its natural-key index entries in one
// write transaction, so concurrent uploads of the same document cannot both
// be stored
func (b *BoltDB) SaveInvoice(inv *Invoice) error {
	if inv.WorkspaceID == "" || inv.ID == "" {
		return fmt.Errorf("invoice needs a workspace and an id")
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		invoices, err := workspaceBucket(tx, invoicesBucket, inv.WorkspaceID)
		if err != nil {
			return err
		}
		if invoices.Get([]byte(inv.ID)) != nil {
			return fmt.Errorf("%w: invoice id %s", ErrDuplicateKey, inv.ID)
		}

		if inv.InvoiceNumber != nil {
			if err := putUnique(tx, invoiceNumberBucket, inv.WorkspaceID, *inv.InvoiceNumber, inv.ID); err != nil {
				return err
			}
		}
		if inv.Fingerprint != nil {
			if err := putUnique(tx, fingerprintBucket, inv.WorkspaceID, *inv.Fingerprint, inv.ID); err != nil {
				return err
			}
		}

		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return invoices.Put([]byte(inv.ID), data)
	})
}

func putUnique(tx *bbolt.Tx, index []byte, workspaceID, key, id string) error {
	bucket, err := workspaceBucket(tx, index, workspaceID)
	if err != nil {
		return err
	}
	if existing := bucket.Get([]byte(key)); existing != nil {
		return fmt.Errorf("%w: %s %q held by %s", ErrDuplicateKey, index, key, existing)
	}
	return bucket.Put([]byte(key), []byte(id))
}

// UpdateInvoice replaces an existing invoice. Natural keys are immutable
// after ingestion so the indexes are left alone.
func (b *BoltDB) UpdateInvoice(inv *Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return replaceInvoice(tx, inv)
	})
}

func replaceInvoice(tx *bbolt.Tx, inv *Invoice) error {
	invoices, err := workspaceBucket(tx, invoicesBucket, inv.WorkspaceID)
	if err != nil {
		return err
	}
	if invoices.Get([]byte(inv.ID)) == nil {
		return fmt.Errorf("%w: %s", ErrInvoiceNotFound, inv.ID)
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshaling invoice: %w", err)
	}
	return invoices.Put([]byte(inv.ID), data)
}

// RecordCorrection replaces an invoice and appends a correction log entry in
// the same write transaction
func (b *BoltDB) RecordCorrection(inv *Invoice, c *CorrectionLog) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := replaceInvoice(tx, inv); err != nil {
			return err
		}
		corrections, err := workspaceBucket(tx, correctionsBucket, c.WorkspaceID)
		if err != nil {
			return err
		}
		// sequence keys keep corrections in insertion order
		seq, err := corrections.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling correction: %w", err)
		}
		return corrections.Put([]byte(fmt.Sprintf("%020d", seq)), data)
	})
}

// ListCorrections returns a workspace's correction log, oldest first
func (b *BoltDB) ListCorrections(workspaceID string) ([]*CorrectionLog, error) {
	corrections := make([]*CorrectionLog, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, _ := workspaceBucket(tx, correctionsBucket, workspaceID)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var c CorrectionLog
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unmarshaling correction %s: %w", k, err)
			}
			corrections = append(corrections, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return corrections, nil
}

// GetInvoice retrieves an invoice by workspace and ID
func (b *BoltDB) GetInvoice(workspaceID, id string) (*Invoice, error) {
	var inv *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		inv, err = getInvoice(tx, workspaceID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func getInvoice(tx *bbolt.Tx, workspaceID, id string) (*Invoice, error) {
	invoices, _ := workspaceBucket(tx, invoicesBucket, workspaceID)
	if invoices == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
	}
	data := invoices.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
	}
	var inv Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice: %w", err)
	}
	return &inv, nil
}

// ListInvoices returns all invoices of a workspace, newest upload first
func (b *BoltDB) ListInvoices(workspaceID string) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, _ := workspaceBucket(tx, invoicesBucket, workspaceID)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice %s: %w", k, err)
			}
			invoices = append(invoices, &inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].UploadedAt.After(invoices[j].UploadedAt)
	})
	return invoices, nil
}

// FindByInvoiceNumber returns the invoice holding a vendor invoice number
func (b *BoltDB) FindByInvoiceNumber(workspaceID, number string) (*Invoice, error) {
	return b.findByIndex(invoiceNumberBucket, workspaceID, number)
}

// FindByFingerprint returns the invoice holding a fingerprint
func (b *BoltDB) FindByFingerprint(workspaceID, fingerprint string) (*Invoice, error) {
	return b.findByIndex(fingerprintBucket, workspaceID, fingerprint)
}

func (b *BoltDB) findByIndex(index []byte, workspaceID, key string) (*Invoice, error) {
	var inv *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, _ := workspaceBucket(tx, index, workspaceID)
		if bucket == nil {
			return nil
		}
		id := bucket.Get([]byte(key))
		if id == nil {
			return nil
		}
		var err error
		inv, err = getInvoice(tx, workspaceID, string(id))
		if errors.Is(err, ErrInvoiceNotFound) {
			// dangling index entry, treat the key as held anyway
			inv = &Invoice{ID: string(id), WorkspaceID: workspaceID}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// SaveWorkspace creates or replaces a workspace
func (b *BoltDB) SaveWorkspace(ws *Workspace) error {
	if err := ws.Validate(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(ws)
		if err != nil {
			return fmt.Errorf("marshaling workspace: %w", err)
		}
		return tx.Bucket(workspacesBucket).Put([]byte(ws.ID), data)
	})
}

// GetWorkspace retrieves a workspace by ID
func (b *BoltDB) GetWorkspace(id string) (*Workspace, error) {
	var ws *Workspace
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(workspacesBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
		}
		return json.Unmarshal(data, &ws)
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
