package extract

import (
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

// ReadUpload pulls the single file field out of a multipart request and
// returns it with its MIME type sniffed from the payload bytes. maxBytes is a
// transport-level cap; the per-category ceilings are the validator's job.
func ReadUpload(r *http.Request, field string, maxBytes int64) (File, *Error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return File{}, NewError(KindNoFile, "No file provided")
		}
		return File{}, NewError(KindTooLarge, "Upload exceeds the request size limit.")
	}

	mf, header, err := r.FormFile(field)
	if err != nil {
		return File{}, NewError(KindNoFile, "No file provided")
	}
	defer mf.Close()

	data, err := io.ReadAll(io.LimitReader(mf, maxBytes+1))
	if err != nil {
		return File{}, NewError(KindUnknown, "Failed to read the uploaded file.")
	}
	if int64(len(data)) > maxBytes {
		return File{}, NewError(KindTooLarge, "Upload exceeds the request size limit.")
	}
	if len(data) == 0 {
		return File{}, NewError(KindNoFile, "No file provided")
	}

	return File{
		Name:        header.Filename,
		ContentType: normalizeMIME(header.Header.Get("Content-Type")),
		SniffedType: sniffMIME(data),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

func sniffMIME(data []byte) string {
	if m := mimetype.Detect(data); m != nil {
		// mimetype appends charset parameters for text types.
		return normalizeMIME(m.String())
	}
	return ""
}
