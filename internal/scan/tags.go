package scan

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/dhowden/tag"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/g2p/joujou/internal/cast"
)

// Artwork is an image embedded in a track's tags.
type Artwork struct {
	MIME string
	Data []byte
}

// maxArtDimension bounds cover art sent to the receiver; bigger images
// are scaled down before serving.
const maxArtDimension = 1280

// readTags converts the container's tags into the cast metadata shape.
// A file without tags is fine; a file whose tags cannot be parsed is not.
// Multi-valued tags already collapsed upstream arrive as single values
// here and stay that way.
func readTags(logger *zap.Logger, r io.ReadSeeker) (*cast.MusicTrackMetadata, *Artwork, error) {
	md, err := tag.ReadFrom(r)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	out := &cast.MusicTrackMetadata{MetadataType: cast.MusicTrackMetadataType}
	setString(&out.AlbumName, md.Album())
	setString(&out.Title, md.Title())
	setString(&out.AlbumArtist, md.AlbumArtist())
	setString(&out.Artist, md.Artist())
	setString(&out.Composer, md.Composer())
	if n, _ := md.Track(); n > 0 {
		v := uint32(n)
		out.TrackNumber = &v
	}
	if n, _ := md.Disc(); n > 0 {
		v := uint32(n)
		out.DiscNumber = &v
	}
	if y := md.Year(); y > 0 {
		s := strconv.Itoa(y)
		out.ReleaseDate = &s
	}

	var art *Artwork
	if pic := md.Picture(); pic != nil && len(pic.Data) > 0 {
		art = fitArtwork(logger, &Artwork{MIME: pic.MIMEType, Data: pic.Data})
	}
	return out, art, nil
}

func setString(dst **string, v string) {
	if v != "" {
		s := v
		*dst = &s
	}
}

// fitArtwork downscales oversized embedded art. An undecodable image is
// passed through untouched; the receiver may still cope with it.
func fitArtwork(logger *zap.Logger, art *Artwork) *Artwork {
	img, err := imaging.Decode(bytes.NewReader(art.Data))
	if err != nil {
		logger.Debug("artwork not decodable, serving as-is", zap.Error(err))
		return art
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxArtDimension && bounds.Dy() <= maxArtDimension {
		return art
	}
	fitted := imaging.Fit(img, maxArtDimension, maxArtDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG); err != nil {
		logger.Debug("artwork re-encode failed, serving as-is", zap.Error(err))
		return art
	}
	return &Artwork{MIME: "image/jpeg", Data: buf.Bytes()}
}
