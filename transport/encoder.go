package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

// DefaultDataFilename is used for multipart data parts when the caller does
// not provide a filename.
const DefaultDataFilename = "memory_data"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// requestBody is the encoded form of a descriptor's payload. newReader
// produces a fresh reader per attempt; one-shot bodies (streams) refuse a
// second read so the retry loop knows to stop.
type requestBody struct {
	contentType string
	// forceContentType makes the encoder's value authoritative even when
	// the caller supplied a Content-Type header. Multipart needs this so
	// the header boundary matches the written body.
	forceContentType bool
	oneShot          bool
	consumed         bool
	next             func() (io.Reader, error)
}

func (b *requestBody) newReader() (io.Reader, error) {
	if b.next == nil {
		return nil, nil
	}
	if b.oneShot && b.consumed {
		return nil, NewValidationError("streaming request body already consumed", "body")
	}
	b.consumed = true
	return b.next()
}

// replayable reports whether another attempt can rebuild the body.
func (b *requestBody) replayable() bool {
	return b.next == nil || !b.oneShot
}

// encodeBody turns the descriptor's payload variant into a requestBody.
// Encoding failures are client-side and never reach the network.
func encodeBody(desc *RequestDescriptor) (*requestBody, error) {
	switch {
	case desc.JSONBody != nil:
		data, err := json.Marshal(desc.JSONBody)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("cannot marshal JSON body: %v", err), "json_body")
		}
		return &requestBody{
			contentType: ContentTypeJSONUTF8,
			next: func() (io.Reader, error) {
				return bytes.NewReader(data), nil
			},
		}, nil

	case desc.RawBody != nil:
		// Content type comes from the caller's headers (validated).
		return &requestBody{
			next: func() (io.Reader, error) {
				return bytes.NewReader(desc.RawBody), nil
			},
		}, nil

	case desc.StreamBody != nil:
		stream := desc.StreamBody
		return &requestBody{
			oneShot: true,
			next: func() (io.Reader, error) {
				return stream, nil
			},
		}, nil

	case desc.Multipart != nil:
		return encodeMultipart(desc.Multipart)

	default:
		return &requestBody{}, nil
	}
}

// encodeMultipart encodes a multipart payload. Byte-backed payloads are
// assembled eagerly into a replayable buffer; stream-backed payloads are
// piped per attempt and become one-shot.
func encodeMultipart(payload *MultipartPayload) (*requestBody, error) {
	parts, err := newMultipartParts(payload)
	if err != nil {
		return nil, err
	}

	if payload.Data.Stream == nil {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		if err := parts.writeTo(writer); err != nil {
			return nil, NewValidationError(fmt.Sprintf("cannot encode multipart body: %v", err), "multipart")
		}
		if err := writer.Close(); err != nil {
			return nil, NewValidationError(fmt.Sprintf("cannot finalize multipart body: %v", err), "multipart")
		}
		encoded := buf.Bytes()
		return &requestBody{
			contentType:      writer.FormDataContentType(),
			forceContentType: true,
			next: func() (io.Reader, error) {
				return bytes.NewReader(encoded), nil
			},
		}, nil
	}

	// Stream-backed: fix the boundary up front so the Content-Type header
	// agrees with the body written later by the pipe goroutine.
	template := multipart.NewWriter(io.Discard)
	boundary := template.Boundary()
	contentType := template.FormDataContentType()
	return &requestBody{
		contentType:      contentType,
		forceContentType: true,
		oneShot:          true,
		next: func() (io.Reader, error) {
			pr, pw := io.Pipe()
			go func() {
				writer := multipart.NewWriter(pw)
				if err := writer.SetBoundary(boundary); err != nil {
					pw.CloseWithError(err)
					return
				}
				err := parts.writeTo(writer)
				if closeErr := writer.Close(); err == nil {
					err = closeErr
				}
				pw.CloseWithError(err)
			}()
			return pr, nil
		},
	}, nil
}

// multipartParts holds the pre-marshaled JSON parts so marshal failures
// surface as validation errors before any network attempt, in both the
// buffered and the streamed encoding.
type multipartParts struct {
	metadataJSON []byte
	contextJSON  []byte
	data         *DataPart
	filename     string
	contentType  string
}

func newMultipartParts(payload *MultipartPayload) (*multipartParts, error) {
	metadataJSON, err := json.Marshal(payload.Metadata)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("cannot marshal metadata part: %v", err), "multipart.metadata")
	}
	var contextJSON []byte
	if len(payload.Context) > 0 {
		contextJSON, err = json.Marshal(payload.Context)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("cannot marshal context part: %v", err), "multipart.context")
		}
	}

	filename := payload.Data.Filename
	if filename == "" {
		filename = DefaultDataFilename
	}
	contentType := payload.Data.ContentType
	if contentType == "" {
		contentType = inferContentType(filename)
	}
	return &multipartParts{
		metadataJSON: metadataJSON,
		contextJSON:  contextJSON,
		data:         &payload.Data,
		filename:     filename,
		contentType:  contentType,
	}, nil
}

func (p *multipartParts) writeTo(writer *multipart.Writer) error {
	if err := writeFieldPart(writer, "metadata", p.metadataJSON); err != nil {
		return err
	}
	if p.contextJSON != nil {
		if err := writeFieldPart(writer, "context", p.contextJSON); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="data"; filename="%s"`, quoteEscaper.Replace(p.filename)))
	header.Set(HeaderContentType, p.contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if p.data.Stream != nil {
		_, err = io.Copy(part, p.data.Stream)
		return err
	}
	_, err = part.Write(p.data.Bytes)
	return err
}

// writeFieldPart writes a named JSON form field.
func writeFieldPart(writer *multipart.Writer, name string, data []byte) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, name))
	header.Set(HeaderContentType, ContentTypeJSON)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

// wellKnownTypes resolves common extensions locally so inference does not
// depend on the host's mime.types database.
var wellKnownTypes = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".json": "application/json",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".zip":  "application/zip",
	".gz":   "application/gzip",
}

// inferContentType guesses a content type from the filename extension,
// stripping any charset parameter, and falls back to octet-stream.
func inferContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ContentTypeOctetStream
	}
	if contentType, ok := wellKnownTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = strings.TrimSpace(contentType[:i])
		}
		return contentType
	}
	return ContentTypeOctetStream
}
