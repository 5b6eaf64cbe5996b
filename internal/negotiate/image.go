package negotiate

import "github.com/eleven-am/transcoder/internal/domain"

// ImageSize fits width x height inside the bounds keeping the ratio. Zero
// bounds leave that side unconstrained.
func ImageSize(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && float64(height)*scale > float64(maxHeight) {
		scale = float64(maxHeight) / float64(height)
	}
	return even(round(float64(width) * scale)), even(round(float64(height) * scale))
}

// RotationFilters undoes an EXIF orientation.
func RotationFilters(orientation int) []string {
	switch orientation {
	case 2:
		return []string{"hflip"}
	case 3:
		return []string{"hflip", "vflip"}
	case 4:
		return []string{"vflip"}
	case 5:
		return []string{"transpose=0"}
	case 6:
		return []string{"transpose=1"}
	case 7:
		return []string{"transpose=3"}
	case 8:
		return []string{"transpose=2"}
	}
	return nil
}

func ImageChanged(src domain.ImageSource, t domain.ImageTarget) bool {
	if t.Container != domain.ImageContainerUnknown && t.Container != src.Container {
		return true
	}
	if (t.MaxWidth > 0 && src.Width > t.MaxWidth) || (t.MaxHeight > 0 && src.Height > t.MaxHeight) {
		return true
	}
	if t.AutoRotate && src.Orientation > 1 {
		return true
	}
	if t.PixelFormat != domain.PixelFormatUnknown && t.PixelFormat != src.PixelFormat {
		return true
	}
	return t.Quality == domain.QualityCustom
}
