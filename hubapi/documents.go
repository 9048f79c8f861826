package hubapi

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/internal/errors"
)

type DocumentStatus string

const (
	DocumentDraft    DocumentStatus = "draft"
	DocumentActive   DocumentStatus = "active"
	DocumentArchived DocumentStatus = "archived"
)

type Document struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        *string        `json:"category"`
	CategoryName    *string        `json:"category_name"`
	Tags            []string       `json:"tags"`
	Household       *string        `json:"household"`
	HouseholdName   *string        `json:"household_name"`
	Client          *string        `json:"client"`
	ClientName      *string        `json:"client_name"`
	File            string         `json:"file"`
	FileURL         string         `json:"file_url"`
	FileName        string         `json:"file_name"`
	FileSize        int64          `json:"file_size"`
	FileSizeDisplay string         `json:"file_size_display"`
	FileType        string         `json:"file_type"`
	Status          DocumentStatus `json:"status"`
	Version         int            `json:"version"`
	UploadedBy      *string        `json:"uploaded_by"`
	UploadedByName  *string        `json:"uploaded_by_name"`
	EffectiveDate   *string        `json:"effective_date"`
	ExpirationDate  *string        `json:"expiration_date"`
	IsConfidential  bool           `json:"is_confidential"`
	ClientVisible   bool           `json:"client_visible"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type DocumentCategory struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	Icon          string `json:"icon"`
	Color         string `json:"color"`
	DocumentCount int    `json:"document_count"`
}

// DocumentUpload describes a new document. Empty optional fields are not sent.
type DocumentUpload struct {
	Title          string
	Description    string
	Category       string
	Tags           []string
	Household      string
	Client         string
	EffectiveDate  string
	IsConfidential *bool
	ClientVisible  *bool

	FileName    string
	ContentType string
	File        io.Reader
}

func (u DocumentUpload) fields() (map[string]string, error) {
	f := map[string]string{"title": u.Title}
	optional := map[string]string{
		"description":    u.Description,
		"category":       u.Category,
		"household":      u.Household,
		"client":         u.Client,
		"effective_date": u.EffectiveDate,
	}
	for k, v := range optional {
		if v != "" {
			f[k] = v
		}
	}
	if u.Tags != nil {
		tags, err := json.Marshal(u.Tags)
		if err != nil {
			return nil, errors.Wrapf(err, "[DocumentUpload fields] tags")
		}
		f["tags"] = string(tags)
	}
	if u.IsConfidential != nil {
		f["is_confidential"] = strconv.FormatBool(*u.IsConfidential)
	}
	if u.ClientVisible != nil {
		f["client_visible"] = strconv.FormatBool(*u.ClientVisible)
	}
	return f, nil
}

// Download is a short-lived link to a document's file
type Download struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
}

type DocumentsService struct {
	client *apiclient.Client
}

func (s *DocumentsService) List(ctx context.Context, params Params) (Page[Document], error) {
	return get[Page[Document]](ctx, s.client, withQuery("/documents/", params))
}

func (s *DocumentsService) Get(ctx context.Context, id string) (Document, error) {
	return get[Document](ctx, s.client, itemPath("/documents/", id))
}

// Upload sends the document as multipart form data. Uploads are not
// retried after a token refresh.
func (s *DocumentsService) Upload(ctx context.Context, u DocumentUpload) (Document, error) {
	fields, err := u.fields()
	if err != nil {
		return Document{}, err
	}
	var doc Document
	err = s.client.Upload(ctx, "/documents/", fields, apiclient.FormFile{
		Field:       "file",
		Name:        u.FileName,
		ContentType: u.ContentType,
		Content:     u.File,
	}, &doc)
	return doc, err
}

func (s *DocumentsService) Download(ctx context.Context, id string) (Download, error) {
	return get[Download](ctx, s.client, itemPath("/documents/", id)+"download/")
}

func (s *DocumentsService) Delete(ctx context.Context, id string) error {
	return s.client.Delete(ctx, itemPath("/documents/", id), nil)
}

func (s *DocumentsService) Recent(ctx context.Context) ([]Document, error) {
	return get[[]Document](ctx, s.client, "/documents/recent/")
}

type DocumentCategoriesService struct {
	client *apiclient.Client
}

// List returns every category. The endpoint may answer with a page or a
// plain array.
func (s *DocumentCategoriesService) List(ctx context.Context) ([]DocumentCategory, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/document-categories/", &raw); err != nil {
		return nil, err
	}
	return pageOrList[DocumentCategory](raw)
}
