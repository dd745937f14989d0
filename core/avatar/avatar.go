package avatar

import (
	"fmt"
	"html"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
)

// Objects
const (
	ObjectGroup = "group"
	ObjectUser  = "user"
)

// Types
const (
	TypeFull  = "full"
	TypeThumb = "thumb"
)

var (
	objectDirs = map[string]string{
		ObjectGroup: "group-avatars",
		ObjectUser:  "avatars",
	}

	allowedMimeTypes = []string{"image/jpeg", "image/png", "image/gif"}
	unsafeNameChars  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	typeMarkers      = regexp.MustCompile(`(?i)-bp(full|thumb)`)

	// errors
	ErrUnknownObject = errors.New("unknown avatar object")
	ErrNoFile        = errors.New("no file was uploaded")
	ErrInvalidType   = errors.New("please upload only JPG, GIF or PNG photos")
)

// Cropped holds the paths of the generated images.
type Cropped struct {
	Full  string
	Thumb string
}

type FetchArgs struct {
	Object string
	ItemID int
	Type   string // full | thumb (default)
	HTML   bool
	Alt    string
}

type CropArgs struct {
	Object       string
	ItemID       int
	OriginalFile string
	Rect         image.Rectangle
}

// Service stores avatars on disk: <UploadPath>/<object dir>/<item id>/<file>.
type Service struct {
	conf core.AvatarConfig
}

func NewService(conf core.AvatarConfig) *Service {
	return &Service{conf: conf}
}

func (svc *Service) Config() core.AvatarConfig { return svc.conf }

func (svc *Service) itemDir(object string, itemID int) (string, error) {
	dir, ok := objectDirs[object]
	if !ok {
		return "", ErrUnknownObject
	}
	return filepath.Join(svc.conf.UploadPath, dir, strconv.Itoa(itemID)), nil
}

// Upload checks the uploaded file and stores it as the original image of the item.
func (svc *Service) Upload(fh *multipart.FileHeader, object string, itemID int) (string, error) {
	if fh == nil {
		return "", ErrNoFile
	}
	if svc.conf.OriginalMaxFilesize > 0 && fh.Size > svc.conf.OriginalMaxFilesize {
		return "", errors.Errorf("that photo is too big, please upload one smaller than %s", formatSize(svc.conf.OriginalMaxFilesize))
	}

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer func() { _ = src.Close() }()

	mime, err := mimetype.DetectReader(src)
	if err != nil {
		return "", errors.Wrap(err, "detecting file type")
	}
	if !mimetype.EqualsAny(mime.String(), allowedMimeTypes...) {
		return "", ErrInvalidType
	}
	if _, err = src.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewinding upload")
	}

	dir, err := svc.itemDir(object, itemID)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}

	path := uniquePath(dir, originalName(fh.Filename), mime.Extension())

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	defer func() { _ = dst.Close() }()
	if _, err = io.Copy(dst, src); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(err, "saving file")
	}
	return path, nil
}

// maxWidth is the widest an original may be before it gets shrunk.
func (svc *Service) maxWidth(uiAvailableWidth int) int {
	if uiAvailableWidth > 0 && (svc.conf.OriginalMaxWidth <= 0 || uiAvailableWidth < svc.conf.OriginalMaxWidth) {
		return uiAvailableWidth
	}
	return svc.conf.OriginalMaxWidth
}

// Shrink scales the image at path down to the available width, keeping its aspect ratio.
// It returns the path of the resized copy and true, or path and false when nothing was done.
func (svc *Service) Shrink(path string, uiAvailableWidth int) (string, bool, error) {
	maxW := svc.maxWidth(uiAvailableWidth)
	if maxW <= 0 {
		return path, false, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return "", false, errors.Wrap(err, "opening image")
	}
	if img.Bounds().Dx() <= maxW {
		return path, false, nil
	}

	resized := imaging.Resize(img, maxW, 0, imaging.Lanczos)
	ext := filepath.Ext(path)
	name := fmt.Sprintf("%s-%dx%d", strings.TrimSuffix(filepath.Base(path), ext), resized.Bounds().Dx(), resized.Bounds().Dy())
	newPath := uniquePath(filepath.Dir(path), name, ext)
	if err = imaging.Save(resized, newPath); err != nil {
		return "", false, errors.Wrap(err, "saving resized image")
	}
	return newPath, true, nil
}

// Dimensions returns the width and height of the image at path.
func (svc *Service) Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "opening image")
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, errors.Wrap(err, "decoding image")
	}
	return cfg.Width, cfg.Height, nil
}

// IsTooSmall reports whether the image at path is smaller than the full avatar dimensions.
func (svc *Service) IsTooSmall(path string) (bool, error) {
	w, h, err := svc.Dimensions(path)
	if err != nil {
		return false, err
	}
	return w < svc.conf.FullWidth || h < svc.conf.FullHeight, nil
}

// Crop cuts args.Rect out of the original and writes the full and thumb avatars.
// The original is removed on success.
func (svc *Service) Crop(args CropArgs) (Cropped, error) {
	dir, err := svc.itemDir(args.Object, args.ItemID)
	if err != nil {
		return Cropped{}, err
	}

	img, err := imaging.Open(args.OriginalFile)
	if err != nil {
		return Cropped{}, errors.Wrap(err, "opening original")
	}
	rect := args.Rect.Intersect(img.Bounds())
	if rect.Empty() {
		return Cropped{}, errors.New("empty crop area")
	}
	cropped := imaging.Crop(img, rect)

	ext := strings.ToLower(filepath.Ext(args.OriginalFile))
	if ext == "" {
		ext = ".jpg"
	}
	hash := uuid.New().String()
	out := Cropped{
		Full:  filepath.Join(dir, hash+"-bpfull"+ext),
		Thumb: filepath.Join(dir, hash+"-bpthumb"+ext),
	}

	full := imaging.Resize(cropped, svc.conf.FullWidth, svc.conf.FullHeight, imaging.Lanczos)
	if err = imaging.Save(full, out.Full); err != nil {
		return Cropped{}, errors.Wrap(err, "saving full avatar")
	}
	thumb := imaging.Resize(cropped, svc.conf.ThumbWidth, svc.conf.ThumbHeight, imaging.Lanczos)
	if err = imaging.Save(thumb, out.Thumb); err != nil {
		_ = os.Remove(out.Full)
		return Cropped{}, errors.Wrap(err, "saving thumb avatar")
	}

	_ = os.Remove(args.OriginalFile)
	return out, nil
}

// find returns the stored avatar of the given type, or "" if there is none.
func (svc *Service) find(object string, itemID int, typ string) (string, error) {
	dir, err := svc.itemDir(object, itemID)
	if err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*-bp"+typ+".*"))
	if err != nil || len(matches) == 0 {
		return "", err
	}
	if len(matches) > 1 {
		sort.Slice(matches, func(i, j int) bool { return modTime(matches[i]) > modTime(matches[j]) })
	}
	return matches[0], nil
}

// Fetch returns the URL (or <img> element) of the item's avatar, falling back to the default.
// An empty result means there is nothing to show.
func (svc *Service) Fetch(args FetchArgs) (string, error) {
	typ := args.Type
	if typ != TypeFull {
		typ = TypeThumb
	}

	path, err := svc.find(args.Object, args.ItemID, typ)
	if err != nil {
		return "", err
	}
	var url string
	if path != "" {
		url = svc.URLFor(path)
	} else {
		url = svc.defaultURL(args.Object)
	}
	if url == "" || !args.HTML {
		return url, nil
	}

	w, h := svc.conf.ThumbWidth, svc.conf.ThumbHeight
	if typ == TypeFull {
		w, h = svc.conf.FullWidth, svc.conf.FullHeight
	}
	return fmt.Sprintf(
		`<img loading="lazy" src="%s" class="avatar %s-%d-avatar avatar-%d photo" width="%d" height="%d" alt="%s" />`,
		html.EscapeString(url), args.Object, args.ItemID, w, w, h, html.EscapeString(args.Alt),
	), nil
}

// DeleteExisting removes the item's full and thumb avatars. It reports false if there were none.
func (svc *Service) DeleteExisting(object string, itemID int) (bool, error) {
	dir, err := svc.itemDir(object, itemID)
	if err != nil {
		return false, err
	}

	var deleted bool
	for _, typ := range []string{TypeFull, TypeThumb} {
		matches, err := filepath.Glob(filepath.Join(dir, "*-bp"+typ+".*"))
		if err != nil {
			return deleted, errors.Wrap(err, "listing avatars")
		}
		for _, m := range matches {
			if err = os.Remove(m); err != nil && !os.IsNotExist(err) {
				return deleted, errors.Wrap(err, "removing avatar")
			}
			deleted = true
		}
	}
	return deleted, nil
}

// URLFor maps a stored file to its public URL.
func (svc *Service) URLFor(path string) string {
	rel, err := filepath.Rel(svc.conf.UploadPath, path)
	if err != nil {
		rel = strings.TrimPrefix(path, svc.conf.UploadPath)
	}
	return svc.conf.URL + "/" + strings.TrimLeft(filepath.ToSlash(rel), "/")
}

func (svc *Service) defaultURL(object string) string {
	if object == ObjectUser {
		return svc.conf.DefaultUserURL
	}
	return svc.conf.DefaultGroupURL
}

// originalName turns a client file name into a safe stem that never passes for a full or thumb avatar.
func originalName(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = unsafeNameChars.ReplaceAllString(name, "-")
	for typeMarkers.MatchString(name) {
		name = typeMarkers.ReplaceAllString(name, "")
	}
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "avatar"
	}
	return name
}

func uniquePath(dir, name, ext string) string {
	path := filepath.Join(dir, name+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", name, i, ext))
	}
}

func modTime(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.ModTime().UnixNano()
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
