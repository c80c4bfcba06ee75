// Package image implements the OCR strategy: the image is inlined as a base64
// data URL and transcribed by a remote multimodal model.
package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

// OCRClient is the remote transcription dependency.
type OCRClient interface {
	ExtractText(ctx context.Context, imageDataURL string) (string, *extract.Error)
}

type Extractor struct {
	client OCRClient
}

func New(client OCRClient) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) Name() string               { return "image-ocr" }
func (e *Extractor) Category() extract.Category { return extract.CategoryImage }

func (e *Extractor) AcceptedTypes() []string {
	return []string{"image/jpeg", "image/jpg", "image/png"}
}

func (e *Extractor) AcceptedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png"}
}

func (e *Extractor) Extract(ctx context.Context, f extract.File) (extract.Result, *extract.Error) {
	mime := f.ContentType
	if mime == "" {
		mime = f.SniffedType
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(f.Data))

	text, err := e.client.ExtractText(ctx, dataURL)
	if err != nil {
		return extract.Result{}, err
	}

	text = strings.TrimSpace(extract.CleanText(text))
	if text == "" {
		// Unlike the PDF path this is a 400: the front end treats an
		// unreadable photo as a bad upload, not an unprocessable document.
		return extract.Result{}, &extract.Error{
			Kind:       extract.KindNoTextContent,
			Message:    "No text could be found in the image.",
			HTTPStatus: http.StatusBadRequest,
		}
	}

	return extract.Result{
		Text: text,
		Metadata: map[string]string{
			"fileName": f.Name,
			"fileSize": strconv.FormatInt(f.Size, 10),
		},
	}, nil
}
