// Package registry persists fitted model state on disk, one current
// artifact per kind. Payloads are zstd-compressed JSON; each payload has a
// JSON sidecar recording the creation time and the SHA-256 hash of the
// stored bytes, so truncation and tampering are detectable. Writes stage
// temp files and rename them into place, so a reader never observes a
// half-written artifact as the current one.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"

	"tidewatch/internal/types"
)

const (
	// payloadExt is the artifact payload suffix: JSON compressed with zstd.
	payloadExt = ".json.zst"

	// infoExt is the metadata sidecar suffix.
	infoExt = ".info.json"

	// writeAttempts bounds retries of artifact installs against transient
	// filesystem errors. The last attempt's error is surfaced.
	writeAttempts = 3

	// writeRetryDelay is the pause between install attempts.
	writeRetryDelay = 50 * time.Millisecond
)

// Store is a directory-backed artifact registry. Reads may run
// concurrently with anything; saves of the same kind must not overlap,
// which the pipeline's per-kind training locks already enforce.
type Store struct {
	dir   string
	clock clockwork.Clock

	encoder *zstd.Encoder

	// decoderPool provides reusable zstd decoders to avoid repeated allocations.
	decoderPool sync.Pool
}

// NewStore opens the registry directory, creating it if needed, and sweeps
// temp files left behind by an interrupted save.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to create registry directory %s: %v", dir, err), err)
	}

	if stale, err := filepath.Glob(filepath.Join(dir, "*.tmp")); err == nil {
		for _, tmp := range stale {
			os.Remove(tmp)
		}
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to create zstd encoder: %v", err), err)
	}

	return &Store{
		dir:     dir,
		clock:   clockwork.NewRealClock(),
		encoder: encoder,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					// This should never fail with nil input and default options.
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}, nil
}

// Save serializes state as JSON, compresses it, and installs it as the
// current artifact for kind, replacing any previous one. The returned info
// records the creation time and the SHA-256 hex hash of the bytes as
// stored on disk.
func (s *Store) Save(ctx context.Context, kind types.ArtifactKind, state any) (*types.ArtifactInfo, error) {
	log := types.LoggerFromContext(ctx)

	if !kind.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidParameter,
			fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to serialize %s state: %v", kind, err), err)
	}

	compressed := s.encoder.EncodeAll(payload, nil)
	sum := sha256.Sum256(compressed)

	info := types.ArtifactInfo{
		Kind:        kind,
		CreatedAt:   s.clock.Now().UTC(),
		ContentHash: hex.EncodeToString(sum[:]),
		SizeBytes:   int64(len(compressed)),
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to serialize %s metadata: %v", kind, err), err)
	}

	if err := s.withRetry(ctx, func() error {
		return installPair(s.payloadPath(kind), compressed, s.infoPath(kind), infoJSON)
	}); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to write %s artifact: %v", kind, err), err)
	}

	log.Info("artifact saved",
		"kind", kind,
		"size_bytes", info.SizeBytes,
		"hash", info.ContentHash[:12],
	)
	return &info, nil
}

// Load reads the current artifact for kind and returns it with the
// decompressed fitted state. Load does not check the content hash; callers
// that care about integrity run Verify first.
func (s *Store) Load(ctx context.Context, kind types.ArtifactKind) (*types.ModelArtifact, error) {
	if !kind.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidParameter,
			fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}

	compressed, err := os.ReadFile(s.payloadPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.NewAppError(types.ErrCodeNotFoundArtifact,
			fmt.Sprintf("no stored artifact for kind %s", kind), err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to read %s artifact: %v", kind, err), err)
	}

	state, err := s.decompress(compressed)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to decompress %s artifact: %v", kind, err), err)
	}

	info := s.readInfo(ctx, kind)
	return &types.ModelArtifact{
		Kind:        kind,
		FittedState: state,
		CreatedAt:   info.CreatedAt,
		ContentHash: info.ContentHash,
		SizeBytes:   info.SizeBytes,
	}, nil
}

// Verify recomputes the SHA-256 hash of the stored payload for kind and
// compares it against the hash recorded at save time. False means the
// artifact is unusable: truncated, tampered with, or missing its sidecar.
// Callers must treat false as fatal for that kind and retrain.
func (s *Store) Verify(ctx context.Context, kind types.ArtifactKind) (bool, error) {
	log := types.LoggerFromContext(ctx)

	if !kind.Valid() {
		return false, types.NewAppError(types.ErrCodeValidationInvalidParameter,
			fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}

	infoData, err := os.ReadFile(s.infoPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("artifact has no metadata sidecar", "kind", kind)
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to read %s metadata: %v", kind, err), err)
	}

	var info types.ArtifactInfo
	if err := json.Unmarshal(infoData, &info); err != nil {
		log.Warn("artifact metadata sidecar is malformed", "kind", kind, "error", err)
		return false, nil
	}
	if info.ContentHash == "" {
		log.Warn("artifact metadata records no hash", "kind", kind)
		return false, nil
	}

	compressed, err := os.ReadFile(s.payloadPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("artifact payload is missing", "kind", kind)
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to read %s artifact: %v", kind, err), err)
	}

	sum := sha256.Sum256(compressed)
	if hex.EncodeToString(sum[:]) != info.ContentHash {
		log.Warn("artifact integrity check failed",
			"kind", kind,
			"stored_hash", info.ContentHash,
		)
		return false, nil
	}
	return true, nil
}

// List returns metadata for every stored artifact, ordered by kind.
// Files that do not look like artifact payloads are ignored.
func (s *Store) List(ctx context.Context) ([]types.ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalRegistry,
			fmt.Sprintf("failed to read registry directory: %v", err), err)
	}

	infos := make([]types.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), payloadExt) {
			continue
		}
		kind := types.ArtifactKind(strings.TrimSuffix(entry.Name(), payloadExt))
		if !kind.Valid() {
			continue
		}
		infos = append(infos, s.readInfo(ctx, kind))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Kind < infos[j].Kind })
	return infos, nil
}

// Cleanup removes artifacts strictly older than maxAge. When keepBest is
// set and exactly one artifact qualifies for removal, it is retained
// regardless of age: a purge never deletes the last usable model. Returns
// the number of artifacts removed.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration, keepBest bool) (int, error) {
	log := types.LoggerFromContext(ctx)

	infos, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	old := make([]types.ArtifactInfo, 0, len(infos))
	for _, info := range infos {
		if info.CreatedAt.IsZero() {
			continue
		}
		if now.Sub(info.CreatedAt) > maxAge {
			old = append(old, info)
		}
	}

	if keepBest && len(old) == 1 {
		log.Info("keeping sole cleanup candidate", "kind", old[0].Kind)
		return 0, nil
	}

	// Oldest first, so a partial failure leaves the freshest artifacts.
	sort.Slice(old, func(i, j int) bool { return old[i].CreatedAt.Before(old[j].CreatedAt) })

	removed := 0
	for _, info := range old {
		if err := os.Remove(s.payloadPath(info.Kind)); err != nil {
			log.Warn("failed to remove artifact", "kind", info.Kind, "error", err)
			continue
		}
		if err := os.Remove(s.infoPath(info.Kind)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to remove artifact sidecar", "kind", info.Kind, "error", err)
		}
		removed++
		log.Info("removed stale artifact",
			"kind", info.Kind,
			"age", now.Sub(info.CreatedAt),
		)
	}

	return removed, nil
}

// readInfo loads the metadata sidecar for kind. A missing or unreadable
// sidecar falls back to metadata recomputed from the payload file itself;
// Verify still fails for such an artifact until the next save rewrites the
// sidecar.
func (s *Store) readInfo(ctx context.Context, kind types.ArtifactKind) types.ArtifactInfo {
	data, err := os.ReadFile(s.infoPath(kind))
	if err == nil {
		var info types.ArtifactInfo
		if err = json.Unmarshal(data, &info); err == nil {
			return info
		}
	}

	types.LoggerFromContext(ctx).Warn("artifact sidecar unreadable, recomputing metadata",
		"kind", kind,
		"error", err,
	)

	info := types.ArtifactInfo{Kind: kind}
	if compressed, readErr := os.ReadFile(s.payloadPath(kind)); readErr == nil {
		sum := sha256.Sum256(compressed)
		info.ContentHash = hex.EncodeToString(sum[:])
		info.SizeBytes = int64(len(compressed))
	}
	if st, statErr := os.Stat(s.payloadPath(kind)); statErr == nil {
		info.CreatedAt = st.ModTime().UTC()
	}
	return info
}

// decompress inflates a stored payload using pooled decoders.
func (s *Store) decompress(data []byte) ([]byte, error) {
	decoder := s.decoderPool.Get().(*zstd.Decoder)
	defer s.decoderPool.Put(decoder)

	result, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return result, nil
}

// withRetry runs op up to writeAttempts times. Registry writes are the one
// I/O path that merits a bounded retry; everything else fails fast.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	log := types.LoggerFromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt < writeAttempts {
			log.Warn("registry write failed, retrying",
				"attempt", attempt,
				"error", lastErr,
			)
			s.clock.Sleep(writeRetryDelay)
		}
	}
	return lastErr
}

// installPair stages both files next to their targets, then renames the
// payload and the sidecar into place, in that order. Rename is atomic, so
// the worst a crash between the two renames can leave is a stale sidecar
// against the new payload, which Verify reports as a mismatch rather than
// ever exposing a torn file.
func installPair(payloadPath string, payload []byte, infoPath string, info []byte) error {
	payloadTmp := payloadPath + ".tmp"
	infoTmp := infoPath + ".tmp"

	if err := os.WriteFile(payloadTmp, payload, 0o644); err != nil {
		return fmt.Errorf("staging payload: %w", err)
	}
	if err := os.WriteFile(infoTmp, info, 0o644); err != nil {
		os.Remove(payloadTmp)
		return fmt.Errorf("staging sidecar: %w", err)
	}
	if err := os.Rename(payloadTmp, payloadPath); err != nil {
		os.Remove(payloadTmp)
		os.Remove(infoTmp)
		return fmt.Errorf("installing payload: %w", err)
	}
	if err := os.Rename(infoTmp, infoPath); err != nil {
		os.Remove(infoTmp)
		return fmt.Errorf("installing sidecar: %w", err)
	}
	return nil
}

func (s *Store) payloadPath(kind types.ArtifactKind) string {
	return filepath.Join(s.dir, string(kind)+payloadExt)
}

func (s *Store) infoPath(kind types.ArtifactKind) string {
	return filepath.Join(s.dir, string(kind)+infoExt)
}
