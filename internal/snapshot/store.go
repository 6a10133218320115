package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/mining"
)

const (
	stateBucket = "states"
	metaBucket  = "meta"

	magic      = "CMS1"
	headerSize = 4 + 1 + 8 + 8

	flagLZ4 byte = 1

	// an LZ4 block expands at most 255 times
	maxLZ4Ratio = 255
)

var (
	// ErrNotFound is returned for an unknown label
	ErrNotFound = stderrors.New("snapshot not found")

	// ErrCorrupt is returned when a stored blob fails its checksum
	ErrCorrupt = stderrors.New("snapshot corrupt")
)

// Meta describes one stored snapshot
type Meta struct {
	Label       string    `json:"label" yaml:"label"`
	RunID       string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	LastCommit  string    `json:"last_commit,omitempty" yaml:"last_commit,omitempty"`
	Commits     int       `json:"commits" yaml:"commits"`
	Files       int       `json:"files" yaml:"files"`
	Methods     int       `json:"methods" yaml:"methods"`
	Trashed     int       `json:"trashed" yaml:"trashed"`
	RawBytes    int       `json:"raw_bytes" yaml:"raw_bytes"`
	StoredBytes int       `json:"stored_bytes" yaml:"stored_bytes"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
}

// Store keeps labelled engine states in a bbolt file
type Store struct {
	db  *bolt.DB
	log logrus.FieldLogger
}

// Open opens or creates the snapshot file at path
func Open(path string, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.FileSystemError(err, "failed to create snapshot directory").WithContext("path", path)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to open snapshot store").WithContext("path", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{stateBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "failed to initialize snapshot store")
	}

	return &Store{db: db, log: logger.WithField("component", "snapshot")}, nil
}

// Close closes the underlying file
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores st under label, replacing any previous snapshot with that label.
// Counts in meta are derived from st; RunID, Commits and LastCommit are kept.
func (s *Store) Save(label string, st mining.State, meta Meta) (Meta, error) {
	if label == "" {
		return Meta{}, errors.ValidationErrorf("snapshot label must not be empty")
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return Meta{}, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to encode snapshot")
	}
	blob, sum := encode(raw)

	meta.Label = label
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	meta.Files = len(st.Files)
	meta.Methods = 0
	for _, f := range st.Files {
		meta.Methods += len(f.Methods)
	}
	meta.Trashed = 0
	for _, t := range st.Trash {
		meta.Trashed += len(t.Methods)
	}
	meta.RawBytes = len(raw)
	meta.StoredBytes = len(blob)
	meta.Checksum = fmt.Sprintf("%016x", sum)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to encode snapshot meta")
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(stateBucket)).Put([]byte(label), blob); err != nil {
			return err
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(label), metaJSON)
	})
	if err != nil {
		return Meta{}, errors.DatabaseError(err, "failed to write snapshot").WithContext("label", label)
	}

	s.log.WithFields(logrus.Fields{
		"label":   label,
		"files":   meta.Files,
		"methods": meta.Methods,
		"raw":     meta.RawBytes,
		"stored":  meta.StoredBytes,
	}).Info("snapshot saved")
	return meta, nil
}

// Load returns the state and meta stored under label
func (s *Store) Load(label string) (mining.State, Meta, error) {
	var blob []byte
	var meta Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(stateBucket)).Get([]byte(label))
		if data == nil {
			return notFound(label)
		}
		// bbolt memory is only valid inside the transaction
		blob = append([]byte(nil), data...)
		if err := json.Unmarshal(tx.Bucket([]byte(metaBucket)).Get([]byte(label)), &meta); err != nil {
			return corrupt(label, err)
		}
		return nil
	})
	if err != nil {
		return mining.State{}, Meta{}, storeError(err, "failed to read snapshot")
	}

	raw, err := decode(blob)
	if err != nil {
		return mining.State{}, Meta{}, corrupt(label, err)
	}

	var st mining.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return mining.State{}, Meta{}, corrupt(label, err)
	}
	return st, meta, nil
}

// Meta returns the description of one snapshot
func (s *Store) Meta(label string) (Meta, error) {
	var meta Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(metaBucket)).Get([]byte(label))
		if data == nil {
			return notFound(label)
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return corrupt(label, err)
		}
		return nil
	})
	if err != nil {
		return Meta{}, storeError(err, "failed to read snapshot meta")
	}
	return meta, nil
}

// List returns every snapshot, oldest first
func (s *Store) List() ([]Meta, error) {
	var metas []Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).ForEach(func(_, v []byte) error {
			var m Meta
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			metas = append(metas, m)
			return nil
		})
	})
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list snapshots")
	}

	sort.SliceStable(metas, func(i, j int) bool {
		if !metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].CreatedAt.Before(metas[j].CreatedAt)
		}
		return metas[i].Label < metas[j].Label
	})
	return metas, nil
}

// Delete removes a snapshot; unknown labels report ErrNotFound
func (s *Store) Delete(label string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		states := tx.Bucket([]byte(stateBucket))
		if states.Get([]byte(label)) == nil {
			return notFound(label)
		}
		if err := states.Delete([]byte(label)); err != nil {
			return err
		}
		return tx.Bucket([]byte(metaBucket)).Delete([]byte(label))
	})
	if err != nil {
		return storeError(err, "failed to delete snapshot")
	}
	return nil
}

func notFound(label string) error {
	return errors.Wrap(ErrNotFound, errors.ErrorTypeValidation, errors.SeverityMedium,
		fmt.Sprintf("snapshot %q not found", label)).WithContext("label", label)
}

func corrupt(label string, cause error) error {
	return errors.Wrap(ErrCorrupt, errors.ErrorTypeFileSystem, errors.SeverityHigh,
		fmt.Sprintf("snapshot %q failed verification", label)).
		WithContext("label", label).
		WithContext("reason", cause.Error())
}

// storeError passes typed errors through and classifies bbolt failures
func storeError(err error, msg string) error {
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return err
	}
	return errors.DatabaseError(err, msg)
}

// encode frames raw as magic | flags | raw length | xxh3(raw) | payload,
// compressing the payload with LZ4 when that makes it smaller
func encode(raw []byte) ([]byte, uint64) {
	sum := xxh3.Hash(raw)

	flags := byte(0)
	payload := raw
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	if n, err := lz4.CompressBlock(raw, compressed, nil); err == nil && n > 0 && n < len(raw) {
		flags = flagLZ4
		payload = compressed[:n]
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(payload))
	buf.WriteString(magic)
	buf.WriteByte(flags)
	binary.Write(&buf, binary.LittleEndian, uint64(len(raw)))
	binary.Write(&buf, binary.LittleEndian, sum)
	buf.Write(payload)
	return buf.Bytes(), sum
}

func decode(blob []byte) ([]byte, error) {
	if len(blob) < headerSize || string(blob[:4]) != magic {
		return nil, stderrors.New("bad header")
	}
	flags := blob[4]
	rawLen := binary.LittleEndian.Uint64(blob[5:13])
	sum := binary.LittleEndian.Uint64(blob[13:21])
	payload := blob[headerSize:]

	raw := payload
	if flags&flagLZ4 != 0 {
		if rawLen > uint64(len(payload))*maxLZ4Ratio {
			return nil, fmt.Errorf("length %d exceeds what %d compressed bytes can hold", rawLen, len(payload))
		}
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, err
		}
		raw = raw[:n]
	}
	if uint64(len(raw)) != rawLen {
		return nil, fmt.Errorf("length %d, want %d", len(raw), rawLen)
	}
	if got := xxh3.Hash(raw); got != sum {
		return nil, fmt.Errorf("checksum %016x, want %016x", got, sum)
	}
	return raw, nil
}
