package core

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// HostRuntime is the out-of-scope rollup host collaborator from spec.md §6
// made concrete: persistent storage, inbox read, outbox write, reveal
// channel, and a reboot marker. Production deployments bind this to the
// real rollup host; jstzd run and the test suite bind it to
// WALHostRuntime.
type HostRuntime interface {
	StorageRW
	ReadInbox() ([]byte, bool, error)
	WriteOutbox(msgs []OutboxMessage) error
	Reveal(hash Hash) ([]byte, bool, error)
	RebootMarker() bool
	Close() error
}

const (
	opSet byte = iota
	opDelete
)

// WALHostRuntime is a write-ahead-logged, in-process HostRuntime. It
// replays its log on open and periodically compacts it into a snapshot,
// mirroring the teacher's NewLedger/OpenLedger open-replay-snapshot-prune
// cycle.
type WALHostRuntime struct {
	mu   sync.RWMutex
	dir  string
	data map[Path][]byte
	wal  *os.File

	opsSinceSnapshot int
	snapshotEvery    int
	snapshotsToKeep  int

	inbox       [][]byte
	inboxCursor int
	outboxSink  func([]OutboxMessage)
	reveals     map[Hash][]byte
	rebootFlag  bool

	log *logrus.Entry
}

// OpenWALHostRuntime opens (creating if absent) a WAL-backed store rooted
// at dir, replaying any existing snapshot and log.
func OpenWALHostRuntime(dir string) (*WALHostRuntime, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Wrap(KindStorageError, err, "create storage dir")
	}
	h := &WALHostRuntime{
		dir:             dir,
		data:            make(map[Path][]byte),
		snapshotEvery:   1000,
		snapshotsToKeep: 3,
		reveals:         make(map[Hash][]byte),
		log:             logrus.WithField("component", "host_runtime"),
	}
	if err := h.loadSnapshot(); err != nil {
		return nil, err
	}
	if err := h.replayWAL(); err != nil {
		return nil, err
	}
	wal, err := os.OpenFile(h.walPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, Wrap(KindStorageError, err, "open wal")
	}
	h.wal = wal
	h.log.WithField("keys", len(h.data)).Info("host runtime opened")
	return h, nil
}

func (h *WALHostRuntime) walPath() string      { return filepath.Join(h.dir, "wal.log") }
func (h *WALHostRuntime) snapshotPath() string { return filepath.Join(h.dir, "snapshot.bin") }

func (h *WALHostRuntime) loadSnapshot() error {
	f, err := os.Open(h.snapshotPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return Wrap(KindStorageError, err, "open snapshot")
	}
	defer f.Close()
	r := bufio.NewReader(f)
	for {
		p, v, err := readEntry(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Wrap(KindStorageError, err, "read snapshot entry")
		}
		h.data[p] = v
	}
	return nil
}

func (h *WALHostRuntime) replayWAL() error {
	f, err := os.Open(h.walPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return Wrap(KindStorageError, err, "open wal for replay")
	}
	defer f.Close()
	r := bufio.NewReader(f)
	for {
		op, p, v, err := readWALEntry(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			h.log.WithError(err).Warn("wal replay stopped at truncated entry")
			break
		}
		switch op {
		case opSet:
			h.data[p] = v
		case opDelete:
			delete(h.data, p)
		}
		h.opsSinceSnapshot++
	}
	return nil
}

func writeEntry(w io.Writer, p Path, v []byte) error {
	pb := []byte(p)
	var lenBuf [8]byte
	binary.BigEndian.PutUint32(lenBuf[0:4], uint32(len(pb)))
	binary.BigEndian.PutUint32(lenBuf[4:8], uint32(len(v)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(pb); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func readEntry(r io.Reader) (Path, []byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, err
	}
	pLen := binary.BigEndian.Uint32(lenBuf[0:4])
	vLen := binary.BigEndian.Uint32(lenBuf[4:8])
	pb := make([]byte, pLen)
	if _, err := io.ReadFull(r, pb); err != nil {
		return "", nil, err
	}
	v := make([]byte, vLen)
	if _, err := io.ReadFull(r, v); err != nil {
		return "", nil, err
	}
	return Path(pb), v, nil
}

func writeWALEntry(w io.Writer, op byte, p Path, v []byte) error {
	if _, err := w.Write([]byte{op}); err != nil {
		return err
	}
	return writeEntry(w, p, v)
}

func readWALEntry(r io.Reader) (byte, Path, []byte, error) {
	var opBuf [1]byte
	if _, err := io.ReadFull(r, opBuf[:]); err != nil {
		return 0, "", nil, err
	}
	p, v, err := readEntry(r)
	return opBuf[0], p, v, err
}

func (h *WALHostRuntime) Get(p Path) ([]byte, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.data[p]
	return v, ok, nil
}

func (h *WALHostRuntime) Has(p Path) (bool, error) {
	_, ok, err := h.Get(p)
	return ok, err
}

func (h *WALHostRuntime) Set(p Path, v []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := writeWALEntry(h.wal, opSet, p, v); err != nil {
		return Wrap(KindStorageError, err, "wal append set")
	}
	h.data[p] = v
	h.opsSinceSnapshot++
	return h.maybeSnapshotLocked()
}

func (h *WALHostRuntime) Delete(p Path) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := writeWALEntry(h.wal, opDelete, p, nil); err != nil {
		return Wrap(KindStorageError, err, "wal append delete")
	}
	delete(h.data, p)
	h.opsSinceSnapshot++
	return h.maybeSnapshotLocked()
}

func (h *WALHostRuntime) PrefixIterator(prefix Path) ([]KV, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []KV
	for p, v := range h.data {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			out = append(out, KV{Path: p, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// maybeSnapshotLocked compacts the WAL into a fresh snapshot once enough
// operations have accumulated. The new snapshot replaces the previous one
// and the WAL is truncated; no older snapshot generations are kept.
// Caller must hold h.mu.
func (h *WALHostRuntime) maybeSnapshotLocked() error {
	if h.opsSinceSnapshot < h.snapshotEvery {
		return nil
	}
	return h.snapshotLocked()
}

func (h *WALHostRuntime) snapshotLocked() error {
	tmp := h.snapshotPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return Wrap(KindStorageError, err, "create snapshot tmp")
	}
	w := bufio.NewWriter(f)
	paths := make([]Path, 0, len(h.data))
	for p := range h.data {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	for _, p := range paths {
		if err := writeEntry(w, p, h.data[p]); err != nil {
			f.Close()
			return Wrap(KindStorageError, err, "write snapshot entry")
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return Wrap(KindStorageError, err, "flush snapshot")
	}
	if err := f.Close(); err != nil {
		return Wrap(KindStorageError, err, "close snapshot")
	}
	if err := os.Rename(tmp, h.snapshotPath()); err != nil {
		return Wrap(KindStorageError, err, "rename snapshot")
	}
	if err := h.wal.Close(); err != nil {
		return Wrap(KindStorageError, err, "close wal before rewrite")
	}
	wal, err := os.Create(h.walPath())
	if err != nil {
		return Wrap(KindStorageError, err, "recreate wal")
	}
	h.wal = wal
	h.opsSinceSnapshot = 0
	h.log.WithField("keys", len(paths)).Info("snapshot written, wal rewritten")
	return nil
}

// StateRoot computes a deterministic digest over the full key space,
// sorted by path, for cross-process agreement on durable state.
func (h *WALHostRuntime) StateRoot() Hash {
	h.mu.RLock()
	defer h.mu.RUnlock()
	paths := make([]Path, 0, len(h.data))
	for p := range h.data {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	parts := make([][]byte, 0, len(paths)*2)
	for _, p := range paths {
		v := h.data[p]
		var lenBuf [8]byte
		binary.BigEndian.PutUint32(lenBuf[0:4], uint32(len(p)))
		binary.BigEndian.PutUint32(lenBuf[4:8], uint32(len(v)))
		parts = append(parts, append(lenBuf[:], []byte(p)...), v)
	}
	return H(parts...)
}

// SeedInbox installs raw inbox message bytes for ReadInbox to drain, used by
// tests in place of a real rollup host inbox.
func (h *WALHostRuntime) SeedInbox(messages [][]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inbox = append(h.inbox, messages...)
}

func (h *WALHostRuntime) ReadInbox() ([]byte, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inboxCursor >= len(h.inbox) {
		return nil, false, nil
	}
	msg := h.inbox[h.inboxCursor]
	h.inboxCursor++
	return msg, true, nil
}

// SetOutboxSink installs a callback invoked with every flushed batch of
// outbox messages; nil disables the callback.
func (h *WALHostRuntime) SetOutboxSink(sink func([]OutboxMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outboxSink = sink
}

func (h *WALHostRuntime) WriteOutbox(msgs []OutboxMessage) error {
	h.mu.RLock()
	sink := h.outboxSink
	h.mu.RUnlock()
	if sink != nil {
		sink(msgs)
	}
	h.log.WithField("count", len(msgs)).Info("outbox flushed to host")
	return nil
}

// SeedReveal installs reveal-channel content addressed by its hash.
func (h *WALHostRuntime) SeedReveal(hash Hash, content []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reveals[hash] = content
}

func (h *WALHostRuntime) Reveal(hash Hash) ([]byte, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.reveals[hash]
	return v, ok, nil
}

// SetRebootMarker marks the current level as requiring a kernel reboot once
// the inbox is drained, mirroring the rollup host's reboot protocol.
func (h *WALHostRuntime) SetRebootMarker(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rebootFlag = v
}

func (h *WALHostRuntime) RebootMarker() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rebootFlag
}

func (h *WALHostRuntime) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.snapshotLocked(); err != nil {
		return err
	}
	return h.wal.Close()
}
