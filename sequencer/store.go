package sequencer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"
)

// Store persists patterns keyed by sequencer and sequence number
type Store interface {
	Load(sequencerID, sequenceID int) (SequenceData, error)
	Save(sequencerID, sequenceID int, d SequenceData) error
	List(sequencerID int) ([]int, error)
	Delete(sequencerID, sequenceID int) error
}

// Format is the on-disk encoding of a FileStore
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FileStore keeps one file per pattern under
// <Dir>/<sequencerID>/<sequenceID>.<json|yaml>
type FileStore struct {
	Dir    string
	Format Format
}

// NewFileStore returns a store rooted at dir. Unknown formats become JSON.
func NewFileStore(dir string, format Format) *FileStore {
	if format != FormatYAML {
		format = FormatJSON
	}
	return &FileStore{Dir: dir, Format: format}
}

func (s *FileStore) ext() string {
	if s.Format == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

func (s *FileStore) sequencerDir(sequencerID int) string {
	return filepath.Join(s.Dir, strconv.Itoa(sequencerID))
}

// Path returns the file a pattern is stored in
func (s *FileStore) Path(sequencerID, sequenceID int) string {
	return filepath.Join(s.sequencerDir(sequencerID), strconv.Itoa(sequenceID)+s.ext())
}

// Load reads and clamps a stored pattern
func (s *FileStore) Load(sequencerID, sequenceID int) (SequenceData, error) {
	path := s.Path(sequencerID, sequenceID)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSequenceData(), fault.Wrap(err,
				ftag.With(ftag.NotFound),
				fmsg.WithDesc("pattern not found", "No saved pattern "+strconv.Itoa(sequenceID)+" for sequencer "+strconv.Itoa(sequencerID)))
		}
		return NewSequenceData(), fault.Wrap(err, fmsg.With("read "+path))
	}

	d := NewSequenceData()
	if s.Format == FormatYAML {
		err = yaml.Unmarshal(raw, &d)
	} else {
		err = json.Unmarshal(raw, &d)
	}
	if err != nil {
		return NewSequenceData(), fault.Wrap(err,
			ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("decode "+path, "Pattern file is corrupt"))
	}
	d.Clamp()
	return d, nil
}

// Save writes a pattern, creating directories as needed. The file is written
// to a temp name and renamed so readers never see half a pattern.
func (s *FileStore) Save(sequencerID, sequenceID int, d SequenceData) error {
	dir := s.sequencerDir(sequencerID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create "+dir))
	}

	var (
		raw []byte
		err error
	)
	if s.Format == FormatYAML {
		raw, err = yaml.Marshal(&d)
	} else {
		raw, err = json.MarshalIndent(&d, "", "  ")
	}
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode pattern"))
	}

	path := s.Path(sequencerID, sequenceID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write "+tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fault.Wrap(err, fmsg.With("rename "+tmp))
	}
	return nil
}

// List returns the stored sequence numbers of a sequencer, ascending
func (s *FileStore) List(sequencerID int) ([]int, error) {
	entries, err := os.ReadDir(s.sequencerDir(sequencerID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int{}, nil
		}
		return nil, fault.Wrap(err, fmsg.With("list patterns"))
	}

	ids := []int{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), s.ext()) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), s.ext()))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Sequencers returns the sequencer IDs that have stored patterns
func (s *FileStore) Sequencers() ([]int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int{}, nil
		}
		return nil, fault.Wrap(err, fmsg.With("list sequencers"))
	}
	ids := []int{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if id, err := strconv.Atoi(entry.Name()); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Delete removes a stored pattern. Deleting a missing pattern is not an error.
func (s *FileStore) Delete(sequencerID, sequenceID int) error {
	err := os.Remove(s.Path(sequencerID, sequenceID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fault.Wrap(err, fmsg.With("delete pattern"))
	}
	return nil
}
