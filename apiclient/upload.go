package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"github.com/jrsteele09/bastion-hub/internal/errors"
)

// UploadFailedMessage replaces the default message of a failed upload.
const UploadFailedMessage = "Upload failed"

// FormFile is the file part of a multipart upload
type FormFile struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// Upload posts fields and file as multipart/form-data. The bearer token is
// read from the session as is: uploads are not refreshed or retried on 401.
func (c *Client) Upload(ctx context.Context, endpoint string, fields map[string]string, file FormFile, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := mw.WriteField(name, fields[name]); err != nil {
			return errors.Wrapf(err, "[Client Upload] field %s", name)
		}
	}

	if file.Content != nil {
		part, err := mw.CreatePart(filePartHeader(file))
		if err != nil {
			return errors.Wrapf(err, "[Client Upload] file part")
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return errors.Wrapf(err, "[Client Upload] copy %s", file.Name)
		}
	}
	if err := mw.Close(); err != nil {
		return errors.Wrapf(err, "[Client Upload] close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return errors.Wrapf(err, "[Client Upload] %s", endpoint)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())

	resp, err := c.bare.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[Client Upload] %s", endpoint)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "[Client Upload] read %s", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, data)
		apiErr.Message = UploadFailedMessage
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "[Client Upload] decode %s", endpoint)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(file FormFile) textproto.MIMEHeader {
	field := file.Field
	if field == "" {
		field = "file"
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name)))
	h.Set("Content-Type", contentType)
	return h
}
