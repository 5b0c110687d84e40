package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ChinmayIngle26/antigravity-pharmacy/internal/gateway"
	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"

	"go.uber.org/zap"
)

// Pipeline turns a selected prescription image into two independent results:
// a locally rendered preview, published as soon as the local read completes,
// and the structured extraction from the remote service.  The two legs race;
// the preview typically lands first.
type Pipeline struct {
	gw     gateway.Client
	logger *zap.Logger
}

func NewPipeline(gw gateway.Client, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{gw: gw, logger: logger}
}

// Run starts both legs.  onPreview fires at most once, when the local render
// is ready; a preview failure is logged and swallowed since the upload still
// proceeds.  onResult fires exactly once with the upload outcome.
func (p *Pipeline) Run(ctx context.Context, filename string, data []byte, onPreview func(string), onResult func(pkg.PrescriptionResult, error)) {
	go func() {
		uri, err := PreviewDataURI(filename, data)
		if err != nil {
			p.logger.Warn("preview render failed", zap.String("file", filename), zap.Error(err))
			return
		}
		if ctx.Err() != nil {
			return
		}
		if onPreview != nil {
			onPreview(uri)
		}
	}()
	go func() {
		res, err := p.gw.UploadPrescription(ctx, filename, data)
		if ctx.Err() != nil {
			return
		}
		if onResult != nil {
			onResult(res, err)
		}
	}()
}

// PreviewDataURI renders image bytes as a data URI the view layer can embed
// directly.  The MIME type comes from the file extension, falling back to
// content sniffing.
func PreviewDataURI(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty file")
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
