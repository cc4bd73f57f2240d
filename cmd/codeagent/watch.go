package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/vinayprograms/codeagent/internal/checkpoint"
	"github.com/vinayprograms/codeagent/internal/workflow"
)

// Run prints committed steps of a run, then follows new ones until the
// outcome is saved or the command is interrupted.
func (c *WatchCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	cs, err := checkpoint.OpenRun(cfg.RunsDir(), c.RunID)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(cs.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cs.Dir(), err)
	}

	// Records committed before the watch started. Reloading after Add means
	// a record is either here or arrives as an event.
	if err := cs.Load(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, rec := range cs.Trail() {
		seen[rec.StepID] = true
		fmt.Println(formatRecord(rec))
		if rec.Name == workflow.StepSaveResult {
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isRecordFile(event.Name) {
				continue
			}
			rec, err := checkpoint.ReadRecord(event.Name)
			if err != nil || seen[rec.StepID] {
				continue
			}
			seen[rec.StepID] = true
			fmt.Println(formatRecord(rec))
			if rec.Name == workflow.StepSaveResult {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

func isRecordFile(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == ".json" && !strings.HasPrefix(base, ".")
}

func formatRecord(rec *checkpoint.Record) string {
	return fmt.Sprintf("%3d  %s  %s  (%d bytes)",
		rec.Seq, rec.Timestamp.Format("15:04:05.000"), rec.StepID, len(rec.Output))
}
