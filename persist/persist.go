// Package persist saves the frame forest to a YAML file and restores it,
// with optional cron-scheduled autosaves and reloads when the file changes
// on disk.
package persist

import (
	"bytes"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"

	"github.com/edaniels/golog"
	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"
	"gopkg.in/yaml.v3"

	"github.com/geekmug/posed"
	"github.com/geekmug/posed/spatialmath"
)

type vectorRecord struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type rotationRecord struct {
	W float64 `yaml:"w"`
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// frameRecord is one saved frame. Frames are written in pre-order, so a
// parent always precedes its children on load.
type frameRecord struct {
	Name        string          `yaml:"name"`
	Parent      string          `yaml:"parent"`
	Unknown     bool            `yaml:"unknown,omitempty"`
	Translation *vectorRecord   `yaml:"translation,omitempty"`
	Rotation    *rotationRecord `yaml:"rotation,omitempty"`
}

type saveFile struct {
	Frames []frameRecord `yaml:"frames"`
}

// Store saves and loads a pose service's frame forest.
type Store struct {
	service  *posed.PoseService
	logger   golog.Logger
	filename string
	workFile string

	mu       sync.Mutex
	lastSum  [sha256.Size]byte
	haveSum  bool
	sched    gocron.Scheduler
	watcher  *fsnotify.Watcher
	workers  sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewStore creates a store for the given service backed by the given file.
func NewStore(service *posed.PoseService, filename string, logger golog.Logger) *Store {
	return &Store{
		service:  service,
		logger:   logger,
		filename: filename,
		workFile: filename + "~",
		stop:     make(chan struct{}),
	}
}

// Save writes the current frame forest. The write goes to a work file that
// is renamed over the target, so the target is always a complete document.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc saveFile
	for f := range s.service.Traverse() {
		if f.IsRoot() {
			continue
		}
		rec := frameRecord{Name: f.Name(), Parent: f.Parent()}
		if xfrm, err := f.TransformFromParent(); err != nil {
			rec.Unknown = true
		} else {
			rec.Translation = &vectorRecord{
				X: xfrm.Translation.X, Y: xfrm.Translation.Y, Z: xfrm.Translation.Z,
			}
			rec.Rotation = &rotationRecord{
				W: xfrm.Rotation.Real,
				X: xfrm.Rotation.Imag,
				Y: xfrm.Rotation.Jmag,
				Z: xfrm.Rotation.Kmag,
			}
		}
		doc.Frames = append(doc.Frames, rec)
	}

	buf, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.Wrap(err, "marshaling save file")
	}
	if err := os.WriteFile(s.workFile, buf, 0o644); err != nil {
		return errors.Wrap(err, "writing save file")
	}
	if err := os.Rename(s.workFile, s.filename); err != nil {
		return errors.Wrap(err, "replacing save file")
	}
	s.lastSum = sha256.Sum256(buf)
	s.haveSum = true
	s.logger.Debugw("saved frame forest", "file", s.filename, "frames", len(doc.Frames))
	return nil
}

// Load restores frames from the save file into the service. A missing file
// is not an error. Records that cannot be restored (absent parent, unknown
// transform away from the body frame) are skipped with a warning; the rest
// of the file still loads.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	buf, err := os.ReadFile(s.filename)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Infow("no save file to load", "file", s.filename)
			return nil
		}
		return errors.Wrap(err, "reading save file")
	}
	s.lastSum = sha256.Sum256(buf)
	s.haveSum = true

	var doc saveFile
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return errors.Wrap(err, "parsing save file")
	}

	var loaded int
	for _, rec := range doc.Frames {
		if err := s.restore(rec); err != nil {
			s.logger.Warnw("skipping frame from save file", "frame", rec.Name, "error", err)
			continue
		}
		loaded++
	}
	s.logger.Infow("loaded frame forest", "file", s.filename, "frames", loaded)
	return nil
}

func (s *Store) restore(rec frameRecord) error {
	if rec.Name == "" || rec.Parent == "" {
		return errors.New("record is missing a name or parent")
	}
	if rec.Unknown {
		if rec.Parent != s.service.BodyFrameName() {
			return errors.New("only frames on the body frame may have an unknown transform")
		}
		return s.service.CreateRoot(rec.Name)
	}
	if rec.Translation == nil || rec.Rotation == nil {
		return errors.New("record is missing its transform")
	}
	xfrm := spatialmath.Transform{
		Rotation: spatialmath.Normalize(quat.Number{
			Real: rec.Rotation.W,
			Imag: rec.Rotation.X,
			Jmag: rec.Rotation.Y,
			Kmag: rec.Rotation.Z,
		}),
		Translation: r3.Vector{
			X: rec.Translation.X,
			Y: rec.Translation.Y,
			Z: rec.Translation.Z,
		},
	}
	return s.service.CreateTransform(rec.Parent, rec.Name, xfrm)
}

// StartAutosave schedules Save on the given cron expression until Close.
func (s *Store) StartAutosave(cron string) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "creating autosave scheduler")
	}
	_, err = sched.NewJob(gocron.CronJob(cron, false), gocron.NewTask(func() {
		if err := s.Save(); err != nil {
			s.logger.Errorw("autosave failed", "error", err)
		}
	}))
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "scheduling autosave"), sched.Shutdown())
	}
	sched.Start()
	s.sched = sched
	return nil
}

// StartWatching reloads the save file whenever its content changes on disk.
// Writes made by this store are recognized by checksum and skipped.
func (s *Store) StartWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating save file watcher")
	}
	if err := watcher.Add(filepath.Dir(s.filename)); err != nil {
		return multierr.Combine(errors.Wrap(err, "watching save file directory"), watcher.Close())
	}
	s.watcher = watcher

	s.workers.Add(1)
	goutils.ManagedGo(func() {
		for {
			select {
			case <-s.stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.filename) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				s.reloadIfChanged()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warnw("save file watcher error", "error", err)
			}
		}
	}, s.workers.Done)
	return nil
}

func (s *Store) reloadIfChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := os.ReadFile(s.filename)
	if err != nil {
		s.logger.Warnw("unable to read changed save file", "error", err)
		return
	}
	current := sha256.Sum256(buf)
	if s.haveSum && bytes.Equal(current[:], s.lastSum[:]) {
		return
	}
	s.logger.Infow("save file changed on disk; reloading", "file", s.filename)
	if err := s.loadLocked(); err != nil {
		s.logger.Errorw("reload failed", "error", err)
	}
}

// Close stops the autosave schedule and the file watcher.
func (s *Store) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.sched != nil {
			err = multierr.Combine(err, s.sched.Shutdown())
		}
		if s.watcher != nil {
			err = multierr.Combine(err, s.watcher.Close())
		}
		s.workers.Wait()
	})
	return err
}
