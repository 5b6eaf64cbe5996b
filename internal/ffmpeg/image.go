package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/negotiate"
)

// Image builds the command for an image request.
func (b *Builder) Image(req *domain.ImageRequest, p Params) (*TranscodeData, error) {
	if req.Source.Path == "" {
		return nil, negotiationError(req.TranscodeID, ErrNoSource)
	}

	d := NewTranscodeData(req.Job)
	if d.Override != "" {
		d.AddInput(0, req.Source.Path)
		d.OutputPath = fileTarget(p.Output)
		return d, nil
	}

	b.InitInputs(d, []string{req.Source.Path}, "-f", "image2pipe")
	b.AddImage(d, req.Source, req.Target)
	d.OutputArgs = append(d.OutputArgs, "-frames:v", "1", "-f", "image2")
	d.OutputPath = fileTarget(p.Output)
	return d, nil
}

// AddImage copies the picture or scales, rotates and re-encodes it.
func (b *Builder) AddImage(d *TranscodeData, src domain.ImageSource, t domain.ImageTarget) {
	if !negotiate.ImageChanged(src, t) {
		d.Copy = true
		d.OutputArgs = append(d.OutputArgs, "-c:v", "copy")
		return
	}

	container := t.Container
	if container == domain.ImageContainerUnknown {
		container = src.Container
	}

	var filters []string
	width, height := src.Width, src.Height
	if t.AutoRotate && src.Orientation > 1 {
		filters = append(filters, negotiate.RotationFilters(src.Orientation)...)
		if src.Orientation >= 5 {
			width, height = height, width
		}
	}
	if w, h := negotiate.ImageSize(width, height, t.MaxWidth, t.MaxHeight); w != width || h != height {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", w, h))
	}

	if enc := container.Encoder(); enc != "" {
		d.OutputArgs = append(d.OutputArgs, "-c:v", enc)
	}
	if len(filters) > 0 {
		d.OutputArgs = append(d.OutputArgs, "-vf", strings.Join(filters, ","))
	}
	if t.PixelFormat != domain.PixelFormatUnknown {
		d.OutputArgs = append(d.OutputArgs, "-pix_fmt", string(t.PixelFormat))
	}
	if container == domain.ImageContainerJPEG || container == domain.ImageContainerWebP {
		d.OutputArgs = append(d.OutputArgs, "-q:v", strconv.Itoa(negotiate.ImageQuality(t.Quality, t.QualityFactor)))
	}
}
