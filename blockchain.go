package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errRecordNotFound = errors.New("record not found")

// ledger keeps encryption records and an append-only hash chain over their
// published digests. It is persisted as one JSON file.
type ledger struct {
	path string
	log  *zap.Logger

	recMu   sync.RWMutex
	records map[string]*Record

	chainMu sync.RWMutex
	chain   []Block

	// saveMu serialises snapshot, write and rename so a newer state is
	// never replaced by an older one.
	saveMu sync.Mutex
}

func newLedger(path string, log *zap.Logger) *ledger {
	return &ledger{
		path:    path,
		log:     log,
		records: map[string]*Record{},
		chain:   make([]Block, 0),
	}
}

func newTxID() string {
	return uuid.NewString()
}

// add stores rec and appends its block. Persistence failures are logged, not
// returned, so a full disk never fails an encryption.
func (l *ledger) add(rec *Record) Block {
	l.recMu.Lock()
	l.records[rec.TxID] = rec
	l.recMu.Unlock()

	blk := l.appendBlock(rec)
	if l.path != "" {
		if err := l.save(); err != nil {
			l.log.Error("failed to save store", zap.String("path", l.path), zap.Error(err))
		} else {
			l.log.Debug("appended block and saved store", zap.Int("index", blk.Index), zap.String("tx_id", rec.TxID))
		}
	}
	return blk
}

func (l *ledger) appendBlock(rec *Record) Block {
	l.chainMu.Lock()
	defer l.chainMu.Unlock()
	prev := ""
	if len(l.chain) > 0 {
		prev = l.chain[len(l.chain)-1].Hash
	}
	blk := Block{
		Index:     len(l.chain),
		Timestamp: time.Now().Unix(),
		TxID:      rec.TxID,
		DataHash:  rec.Published,
		PrevHash:  prev,
	}
	blk.Hash = computeBlockHash(blk)
	l.chain = append(l.chain, blk)
	return blk
}

func (l *ledger) get(id string) (*Record, error) {
	l.recMu.RLock()
	defer l.recMu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errRecordNotFound, id)
	}
	return rec, nil
}

// list returns the records oldest first.
func (l *ledger) list() []*Record {
	l.recMu.RLock()
	out := make([]*Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	l.recMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TxID < out[j].TxID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (l *ledger) blocks() []Block {
	l.chainMu.RLock()
	defer l.chainMu.RUnlock()
	return append([]Block(nil), l.chain...)
}

// blockFor returns the block that published id.
func (l *ledger) blockFor(id string) (Block, bool) {
	l.chainMu.RLock()
	defer l.chainMu.RUnlock()
	for _, b := range l.chain {
		if b.TxID == id {
			return b, true
		}
	}
	return Block{}, false
}

func computeBlockHash(b Block) string {
	s := fmt.Sprintf("%d:%d:%s:%s:%s", b.Index, b.Timestamp, b.TxID, b.DataHash, b.PrevHash)
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func (l *ledger) validateChain() bool {
	l.chainMu.RLock()
	defer l.chainMu.RUnlock()
	for i := range l.chain {
		if computeBlockHash(l.chain[i]) != l.chain[i].Hash {
			return false
		}
		if i > 0 && l.chain[i].PrevHash != l.chain[i-1].Hash {
			return false
		}
	}
	return true
}

// persistence
type persistedStore struct {
	Records map[string]*Record `json:"records"`
	Chain   []Block            `json:"chain"`
}

func (l *ledger) save() error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.recMu.RLock()
	recs := make(map[string]*Record, len(l.records))
	for k, v := range l.records {
		recs[k] = v
	}
	l.recMu.RUnlock()

	p := persistedStore{Records: recs, Chain: l.blocks()}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// load replaces the in-memory state with the file contents. A file that does
// not parse is moved aside to <path>.corrupt-<timestamp>.
func (l *ledger) load() error {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	var p persistedStore
	if err := json.Unmarshal(b, &p); err != nil {
		bad := l.path + ".corrupt-" + time.Now().Format("20060102-150405")
		if err2 := os.Rename(l.path, bad); err2 != nil {
			l.log.Error("failed to move invalid store", zap.String("path", l.path), zap.Error(err2))
			return err
		}
		l.log.Warn("moved invalid store", zap.String("to", bad), zap.Error(err))
		return fmt.Errorf("store %s invalid, moved to %s: %w", l.path, bad, err)
	}
	if p.Records == nil {
		p.Records = map[string]*Record{}
	}
	if p.Chain == nil {
		p.Chain = make([]Block, 0)
	}
	l.recMu.Lock()
	l.records = p.Records
	l.recMu.Unlock()
	l.chainMu.Lock()
	l.chain = p.Chain
	l.chainMu.Unlock()
	l.log.Info("loaded store", zap.String("path", l.path), zap.Int("records", len(p.Records)), zap.Int("blocks", len(p.Chain)))
	return nil
}

// open loads the store, creating an empty one when none exists yet.
func (l *ledger) open() error {
	err := l.load()
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		l.log.Warn("no persisted store loaded", zap.Error(err))
	}
	if err := l.save(); err != nil {
		return fmt.Errorf("create store %s: %w", l.path, err)
	}
	l.log.Info("created new empty store", zap.String("path", l.path))
	return nil
}
