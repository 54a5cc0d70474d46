// Package checkpoint implements the engine's atomic, compressed,
// checksummed state serialization:
// snapshot the MTF manager, the indicator pipeline, and the position
// manager into a single ".btck" file, and restore from the newest
// validating file on disk. Restore keeps going past an individual
// candidate's failure and stops at the first file that validates.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/ashgroveq/mtfengine/internal/indicator"
	"github.com/ashgroveq/mtfengine/internal/mtf"
	"github.com/ashgroveq/mtfengine/internal/position"
	"github.com/ashgroveq/mtfengine/pkg/logger"
)

// FormatVersion is the current CheckpointData wire version. Recovery
// rejects any payload whose Version differs.
const FormatVersion uint32 = 1

// checksumTrailerSize is the little-endian uint64 appended after the
// compressed payload.
const checksumTrailerSize = 8

// Metadata carries descriptive, non-authoritative fields about a
// checkpoint.
type Metadata struct {
	CreatedAt     time.Time
	BacktestID    string
	SymbolCount   int
	TotalBars     int64
	EngineVersion string
}

// IndicatorSnapshot is the indicator pipeline's recoverable state: the
// specs used to rebuild calculators, and the cached values already
// produced.
type IndicatorSnapshot struct {
	Specs []indicator.Spec
	Cache []indicator.CacheEntry
}

// PositionSnapshot is the position manager's full recoverable state.
type PositionSnapshot struct {
	Positions []*position.Position
	Events    []position.TradeEvent
}

// Data is the full, versioned payload written to a ".btck" file. Checksum is computed
// over the gob-encoded bytes of Data with Checksum zeroed, then stored out
// of band as the file's trailing 8 bytes — the in-struct field exists so
// the value travels with the decoded struct for callers that want to
// inspect it, but is not itself part of the integrity check.
type Data struct {
	Version      uint32
	TimestampMs  int64
	TickCount    int64
	MTF          mtf.ManagerSnapshot
	Indicator    IndicatorSnapshot
	Position     PositionSnapshot
	Metadata     Metadata
	Checksum     uint64
}

// filename implements the checkpoint_<backtest_id>_<YYYYMMDD_HHMMSS>.btck
// naming.
func filename(backtestID string, at time.Time) string {
	return fmt.Sprintf("checkpoint_%s_%s.btck", backtestID, at.UTC().Format("20060102_150405"))
}

// Manager creates, lists, and restores checkpoints under Dir, rotating old
// files by MaxCheckpoints.
type Manager struct {
	Dir              string
	BacktestID       string
	MaxCheckpoints   int
	CompressionLevel int
}

// NewManager builds a checkpoint manager rooted at dir. Panics if dir is
// empty.
func NewManager(dir, backtestID string, maxCheckpoints, compressionLevel int) *Manager {
	if dir == "" {
		panic("checkpoint: dir cannot be empty")
	}
	if backtestID == "" {
		backtestID = uuid.NewString()
	}
	return &Manager{
		Dir:              dir,
		BacktestID:       backtestID,
		MaxCheckpoints:   maxCheckpoints,
		CompressionLevel: compressionLevel,
	}
}

// Sources bundles the three subsystems a checkpoint captures, so Create
// doesn't need three separate parameters threaded through every call site.
type Sources struct {
	MTF       *mtf.Manager
	Indicator *indicator.Pipeline
	Position  *position.Manager
	TickCount int64
	TotalBars int64
}

// Create captures a consistent snapshot of src, serializes, checksums,
// compresses, and atomically commits it as a new ".btck" file, then
// rotates old files beyond MaxCheckpoints. The tick path never calls
// Create directly; callers drive it from their own trigger policy
// (elapsed time, tick count, manual, shutdown) so only checkpoint I/O
// ever suspends, on its own goroutine.
func (m *Manager) Create(ctx context.Context, src Sources) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	mtfSnap := src.MTF.Snapshot()
	data := Data{
		Version:     FormatVersion,
		TimestampMs: time.Now().UnixMilli(),
		TickCount:   src.TickCount,
		MTF:         mtfSnap,
		Metadata: Metadata{
			CreatedAt:     time.Now().UTC(),
			BacktestID:    m.BacktestID,
			SymbolCount:   len(mtfSnap.Symbols),
			TotalBars:     src.TotalBars,
			EngineVersion: fmt.Sprintf("v%d", FormatVersion),
		},
	}
	if src.Indicator != nil {
		data.Indicator = IndicatorSnapshot{
			Specs: src.Indicator.Specs(),
			Cache: src.Indicator.Cache().Snapshot(),
		}
	}
	if src.Position != nil {
		positions, events := src.Position.Snapshot()
		data.Position = PositionSnapshot{Positions: positions, Events: events}
	}

	payload, err := encode(data)
	if err != nil {
		return "", fmt.Errorf("checkpoint: encode: %w", err)
	}

	compressed, err := compress(payload, m.CompressionLevel)
	if err != nil {
		return "", fmt.Errorf("checkpoint: compress: %w", err)
	}

	checksum := xxhash.Sum64(payload)
	final := make([]byte, 0, len(compressed)+checksumTrailerSize)
	final = append(final, compressed...)
	var trailer [checksumTrailerSize]byte
	binary.LittleEndian.PutUint64(trailer[:], checksum)
	final = append(final, trailer[:]...)

	name := filename(m.BacktestID, time.Now())
	path := filepath.Join(m.Dir, name)
	if err := m.atomicWrite(path, final); err != nil {
		return "", fmt.Errorf("checkpoint: write: %w", err)
	}

	if err := m.rotate(); err != nil {
		logger.Warn("checkpoint rotation failed", logger.ErrorField(err), logger.String("dir", m.Dir))
	}

	return path, nil
}

// atomicWrite writes data to a ".tmp" file with restrictive permissions
// and renames it into place, the atomic commit point.
func (m *Manager) atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// rotate keeps at most MaxCheckpoints ".btck" files for this backtest, by
// modification time, newest retained.
func (m *Manager) rotate() error {
	if m.MaxCheckpoints <= 0 {
		return nil
	}
	files, err := m.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= m.MaxCheckpoints {
		return nil
	}
	// files is sorted newest-first by listFiles; drop the tail.
	for _, f := range files[m.MaxCheckpoints:] {
		if err := os.Remove(f); err != nil {
			logger.Warn("checkpoint: failed to remove rotated file", logger.ErrorField(err), logger.String("path", f))
		}
	}
	return nil
}

// listFiles returns every ".btck" file for this manager's backtest,
// newest-first by modification time.
func (m *Manager) listFiles() ([]string, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo
	prefix := fmt.Sprintf("checkpoint_%s_", m.BacktestID)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".btck" {
			continue
		}
		if m.BacktestID != "" && len(e.Name()) < len(prefix) {
			continue
		}
		if m.BacktestID != "" && e.Name()[:len(prefix)] != prefix {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: filepath.Join(m.Dir, e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// ErrNoRecoveryAvailable is returned by Recover when no candidate file
// validates.
var ErrNoRecoveryAvailable = fmt.Errorf("checkpoint: no recovery available")

// ErrChecksumMismatch is returned when a candidate file's trailing
// checksum does not match its recomputed value.
var ErrChecksumMismatch = fmt.Errorf("checkpoint: checksum mismatch")

// ErrVersionMismatch is returned when a candidate file's Version field
// does not match FormatVersion.
var ErrVersionMismatch = fmt.Errorf("checkpoint: version mismatch")

// Recover enumerates ".btck" files for this manager's backtest, newest
// first, and returns the first one that validates: checksum matches, and
// the decoded Version matches FormatVersion. Recovery has no timeout of
// its own, but respects ctx cancellation between candidates so a caller
// can bound the overall listing+read loop.
func (m *Manager) Recover(ctx context.Context) (*Data, error) {
	files, err := m.listFiles()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}

	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := m.tryRecoverOne(path)
		if err != nil {
			logger.Warn("checkpoint: candidate failed validation", logger.ErrorField(err), logger.String("path", path))
			continue
		}
		return data, nil
	}
	return nil, ErrNoRecoveryAvailable
}

func (m *Manager) tryRecoverOne(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(raw) < checksumTrailerSize {
		return nil, fmt.Errorf("%w: file too short", ErrChecksumMismatch)
	}

	compressed := raw[:len(raw)-checksumTrailerSize]
	wantChecksum := binary.LittleEndian.Uint64(raw[len(raw)-checksumTrailerSize:])

	payload, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	if xxhash.Sum64(payload) != wantChecksum {
		return nil, ErrChecksumMismatch
	}

	var data Data
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if data.Version != FormatVersion {
		return nil, ErrVersionMismatch
	}
	data.Checksum = wantChecksum
	return &data, nil
}

func encode(data Data) ([]byte, error) {
	data.Checksum = 0
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compress(payload []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(clampLevel(level)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(payload, nil), nil
}

func decompress(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}

// clampLevel maps the 1-22-ish "compression_level" knob onto
// zstd's small set of named encoder levels, since zstd's Go binding
// doesn't expose a numeric level dial directly.
func clampLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
