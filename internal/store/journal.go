package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"optionsql/internal/model"
	"optionsql/pkg/exception"

	"github.com/bytedance/sonic"
)

const (
	defaultSegmentMaxBytes int64 = 64 << 20
	defaultJournalBuffer         = 64 * 1024
	defaultJournalPrefix         = "snapshots"
)

// JournalConfig controls where and how snapshots are journaled.
type JournalConfig struct {
	Dir                string
	FilePrefix         string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	BufferSize         int
	Now                func() time.Time
}

func (c JournalConfig) withDefaults() JournalConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultJournalPrefix
	}
	if c.SegmentMaxBytes <= 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultJournalBuffer
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// JournalRecord is one line of a journal segment.
type JournalRecord struct {
	Ticker  TickerRow        `json:"ticker"`
	Options []OptionChainRow `json:"options"`
}

// Journal is a Sink that appends one JSON line per snapshot to rotating
// segment files.
type Journal struct {
	cfg JournalConfig

	mu     sync.Mutex
	seg    *segment
	segID  uint64
	closed bool
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

// NewJournal creates the target directory. Segments are opened lazily.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: journal dir is empty", exception.ErrConfigInvalid)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Journal{cfg: cfg}, nil
}

func (j *Journal) Save(_ context.Context, snap model.TickerSnapshot) error {
	line, err := sonic.ConfigFastest.Marshal(JournalRecord{
		Ticker:  NewTickerRow(snap),
		Options: NewOptionChainRows(snap),
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return exception.ErrStoreClosed
	}

	now := j.cfg.Now().UTC()
	if j.shouldRotate(now, int64(len(line))) {
		if err := j.closeSegment(); err != nil {
			return err
		}
		if err := j.openSegment(now); err != nil {
			return err
		}
	}
	if _, err := j.seg.buf.Write(line); err != nil {
		return err
	}
	j.seg.size += int64(len(line))
	return j.seg.buf.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.closeSegment()
}

func (j *Journal) shouldRotate(now time.Time, next int64) bool {
	if j.seg == nil {
		return true
	}
	if j.seg.size > 0 && j.seg.size+next > j.cfg.SegmentMaxBytes {
		return true
	}
	if j.cfg.SegmentMaxDuration > 0 && now.Sub(j.seg.openedAt) >= j.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (j *Journal) openSegment(now time.Time) error {
	ts := now.Format("20060102-150405")
	for {
		j.segID++
		name := fmt.Sprintf("%s-%s-%06d.jsonl", j.cfg.FilePrefix, ts, j.segID)
		file, err := os.OpenFile(filepath.Join(j.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return err
		}
		j.seg = &segment{
			file:     file,
			buf:      bufio.NewWriterSize(file, j.cfg.BufferSize),
			openedAt: now,
		}
		return nil
	}
}

func (j *Journal) closeSegment() error {
	seg := j.seg
	if seg == nil {
		return nil
	}
	j.seg = nil
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}
