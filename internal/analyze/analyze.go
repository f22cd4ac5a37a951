// Package analyze runs the SQL scripts that derive analysis tables from the
// stored snapshots.
package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"optionsql/pkg/exception"

	"github.com/yanun0323/logs"
)

// Executor runs one SQL script.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// Script is one .sql file.
type Script struct {
	Name string
	SQL  string
}

// Report summarizes one Run.
type Report struct {
	Executed []string
	Elapsed  time.Duration
}

// Scripts reads the regular .sql files of dir sorted by file name.
func Scripts(dir string) ([]Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, Script{Name: name, SQL: string(body)})
	}
	return scripts, nil
}

// Service executes a script directory against the database after each
// collection pass.
type Service struct {
	exec Executor
	dir  string
}

func New(exec Executor, dir string) (*Service, error) {
	if exec == nil {
		return nil, exception.ErrAnalyzeNilExecutor
	}
	if dir == "" {
		return nil, exception.ErrAnalyzeNoDir
	}
	return &Service{exec: exec, dir: dir}, nil
}

// Run re-reads the directory and executes its scripts in order, stopping at
// the first failure. Scripts added between runs are picked up.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	scripts, err := Scripts(s.dir)
	if err != nil {
		return Report{}, fmt.Errorf("read scripts: %w", err)
	}

	report := Report{Executed: make([]string, 0, len(scripts))}
	for _, sc := range scripts {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}
		logs.Infof("executing sql file: %s", sc.Name)
		if err := s.exec.Exec(ctx, sc.SQL); err != nil {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("execute %s: %w", sc.Name, err)
		}
		report.Executed = append(report.Executed, sc.Name)
	}

	report.Elapsed = time.Since(start)
	logs.Infof("analysis done, scripts: %d, elapsed: %s", len(report.Executed), report.Elapsed)
	return report, nil
}
