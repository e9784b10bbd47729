package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protolink/pkg/observability"
)

func getWatchCmd(gs *globalState) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [root...]",
		Short: "Re-link whenever a proto file changes",
		Long: `Link the roots, then link them again after every burst of changes to
*.proto files below them. Unchanged files are served from the parse cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := gs.newPipeline(args)
			if err != nil {
				return err
			}

			relink := func(ctx context.Context) {
				start := time.Now()
				s, err := p.Link(ctx)
				if err != nil {
					// Diagnostics are printed by reportLinkError; anything else is not.
					if gs.reportLinkError(err) == err {
						fmt.Fprintf(gs.stderr, "Error: %v\n", err)
					}
					return
				}
				fmt.Fprintf(gs.stdout, "%s linked %d files in %s\n",
					time.Now().Format("15:04:05"), len(s.ProtoFiles()), time.Since(start).Round(time.Millisecond))
			}

			w, err := newWatcher(p.Loader().Roots(), debounce, relink, gs.logger)
			if err != nil {
				return err
			}
			gs.logger.WithField("roots", p.Loader().Roots()).Info("Watching for proto changes")
			return w.run(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "wait this long after the last change before linking")
	return cmd
}

// watcher calls relink once at start and again after every burst of
// changes to *.proto files below its roots.
type watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	relink   func(ctx context.Context)
	log      logrus.FieldLogger
}

func newWatcher(roots []string, debounce time.Duration, relink func(ctx context.Context), log logrus.FieldLogger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, root := range roots {
		if err := addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return &watcher{fsw: fsw, debounce: debounce, relink: relink, log: log}, nil
}

// addTree watches root and every directory below it, skipping hidden ones.
func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// run blocks until ctx is done. It closes the watcher.
func (w *watcher) run(ctx context.Context) error {
	defer w.fsw.Close()
	w.link(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(w.fsw, event.Name); err != nil {
						w.log.WithError(err).Warn("Failed to watch new directory")
					}
					continue
				}
			}
			if filepath.Ext(event.Name) != ".proto" {
				continue
			}
			w.log.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("Change detected")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")

		case <-fire:
			fire = nil
			w.link(ctx)
		}
	}
}

func (w *watcher) link(ctx context.Context) {
	defer observability.RecoverPanic(w.log, "watch relink")
	w.relink(ctx)
}
