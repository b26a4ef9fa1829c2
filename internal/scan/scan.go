// Package scan builds the playback queue from a music directory: it
// walks the tree, reads tags from the supported audio containers, picks
// a cover image and orders the entries the way a human would.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
)

// AudioFile is one playable entry of the queue.
type AudioFile struct {
	Path     string
	MIME     string
	Metadata *cast.MusicTrackMetadata
	// Picture is embedded artwork extracted from the tags, if any.
	Picture *Artwork
}

// CoverFile is a standalone cover image found next to the audio files.
type CoverFile struct {
	Path string
	MIME string
}

// Playlist is the scanned queue plus the directory-level cover, when one
// was found.
type Playlist struct {
	Cover   *CoverFile
	Entries []*AudioFile
}

// audioMIME maps known audio extensions (lowercased, without dot) to the
// content type sent to the receiver.
var audioMIME = map[string]string{
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/ogg",
	"mp3":  "audio/mpeg",
}

var coverMIME = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Directory walks root and builds the playlist. Dot-files and
// dot-directories are skipped. Audio files are recognized by extension; a
// recognized file whose tags cannot be parsed is an error rather than a
// silent gap in the queue. Entries are ordered naturally by path
// (track-2 before track-10), ties broken bytewise.
func Directory(logger *zap.Logger, root string) (*Playlist, error) {
	pl := &Playlist{}
	var coverScore int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if mime, ok := coverMIME[ext]; ok {
			score := stemScore(path)
			if pl.Cover == nil || score < coverScore {
				if pl.Cover != nil {
					logger.Info("preferring cover",
						zap.String("cover", path),
						zap.String("over", pl.Cover.Path))
				}
				pl.Cover = &CoverFile{Path: path, MIME: mime}
				coverScore = score
			}
			return nil
		}
		if mime, ok := audioMIME[ext]; ok {
			af, err := loadAudioFile(logger, path, mime)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			pl.Entries = append(pl.Entries, af)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pl.Entries, func(i, j int) bool {
		a, b := pl.Entries[i].Path, pl.Entries[j].Path
		if natural.Less(a, b) {
			return true
		}
		if natural.Less(b, a) {
			return false
		}
		return a < b
	})
	return pl, nil
}

// knownStems rank cover file basenames; earlier is better.
var knownStems = []string{"cover", "front", "00 - cover", "front cover"}

func stemScore(path string) int {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ToLower(stem)
	for i, s := range knownStems {
		if s == stem {
			return i
		}
	}
	return len(knownStems)
}

func loadAudioFile(logger *zap.Logger, path, mime string) (*AudioFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	af := &AudioFile{Path: path, MIME: mime}
	md, pic, err := readTags(logger, f)
	if err != nil {
		return nil, err
	}
	af.Metadata = md
	af.Picture = pic
	return af, nil
}
