package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxAvatarBytes caps the upload before decoding.
	MaxAvatarBytes = 5 << 20
	// AvatarMaxSide is the bounding box avatars are scaled down into.
	AvatarMaxSide = 512
	// MaxSourcePixels and MaxSourceSide bound the decoded upload. A few
	// hundred KB of well-compressed PNG can declare a canvas that needs
	// gigabytes once decoded, so the header is checked before Decode.
	MaxSourcePixels = 40_000_000
	MaxSourceSide   = 10_000

	avatarQuality = 85
	avatarSubdir  = "avatars"
)

var (
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
)

// NormalizeAvatar decodes a jpeg/png/gif/webp upload no larger than
// MaxAvatarBytes on disk and MaxSourcePixels in memory, scales it to fit
// AvatarMaxSide (never upscaling) and re-encodes it as JPEG. Re-encoding
// also strips metadata such as EXIF location.
func NormalizeAvatar(src io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(src, MaxAvatarBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > MaxAvatarBytes {
		return nil, ErrImageTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty canvas", ErrUnsupportedImage)
	}
	if cfg.Width > MaxSourceSide || cfg.Height > MaxSourceSide ||
		int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img = fit(img, AvatarMaxSide)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: avatarQuality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return out.Bytes(), nil
}

// fit scales img into a maxSide box, never upscaling, flattened onto white
// since JPEG has no alpha channel.
func fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(h*maxSide/w, 1)
			w = maxSide
		} else {
			w = max(w*maxSide/h, 1)
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Avatars publishes normalised avatars under a public URL prefix.
type Avatars struct {
	storage   *Storage
	urlPrefix string
}

// NewAvatars stores files in {mediaDir}/avatars, served at
// {urlPrefix}/avatars/.
func NewAvatars(mediaDir, urlPrefix string) (*Avatars, error) {
	storage, err := NewStorage(mediaDir, avatarSubdir)
	if err != nil {
		return nil, err
	}
	return &Avatars{
		storage:   storage,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Put normalises and stores a new avatar under a fresh name and returns
// its public URL. Fresh names keep cached copies of the old avatar from
// being served for the new one.
func (a *Avatars) Put(src io.Reader) (string, error) {
	data, err := NormalizeAvatar(src)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ".jpg"
	if err := a.storage.Save(name, data); err != nil {
		return "", err
	}
	return a.urlPrefix + "/" + avatarSubdir + "/" + name, nil
}

// Remove deletes the file behind a URL returned by Put. URLs this service
// did not issue (including "") are ignored.
func (a *Avatars) Remove(url string) error {
	prefix := a.urlPrefix + "/" + avatarSubdir + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	return a.storage.Delete(path.Base(url))
}
