package pngx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// UploadDocument posts a document file with its metadata. The service queues
// the upload and returns a task identifier; the receipt carries the base
// filename as a search term for locating the consumed document later.
func (c *Client) UploadDocument(ctx context.Context, req UploadRequest) (*UploadReceipt, error) {
	content, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if req.Title != "" {
		if err := w.WriteField("title", req.Title); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if req.CreatedDate != "" {
		if err := w.WriteField("created", req.CreatedDate); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if req.DocumentTypeID != 0 {
		if err := w.WriteField("document_type", strconv.Itoa(req.DocumentTypeID)); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if req.ArchiveSerialNumber != 0 {
		if err := w.WriteField("archive_serial_number", strconv.Itoa(req.ArchiveSerialNumber)); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	for _, id := range req.TagIDs {
		if err := w.WriteField("tags", strconv.Itoa(id)); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}

	part, err := w.CreateFormFile("document", filepath.Base(req.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	var taskID string
	if err := c.do(ctx, http.MethodPost, "documents/post_document/", nil, &buf, w.FormDataContentType(), &taskID); err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}

	base := filepath.Base(req.FilePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	slog.Info("document upload accepted", "file", base, "task_id", taskID)

	return &UploadReceipt{
		TaskID:     taskID,
		SearchTerm: stem,
		Title:      req.Title,
	}, nil
}

// SearchDocuments finds documents whose title contains the given string.
func (c *Client) SearchDocuments(ctx context.Context, titleContains string) (*DocumentPage, error) {
	var page DocumentPage
	params := url.Values{"title__icontains": {titleContains}}
	if err := c.get(ctx, "documents/", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetDocumentByTitle finds a document by exact, case-insensitive title match.
// Returns (nil, nil) when no document matches.
func (c *Client) GetDocumentByTitle(ctx context.Context, title string) (*Document, error) {
	var page DocumentPage
	params := url.Values{"title__iexact": {title}}
	if err := c.get(ctx, "documents/", params, &page); err != nil {
		return nil, err
	}
	if page.Count == 0 {
		return nil, nil
	}
	return &page.Results[0], nil
}

// UpdateDocument patches a document's metadata in place, leaving its binary
// content untouched.
func (c *Client) UpdateDocument(ctx context.Context, id int, fields map[string]any) (*Document, error) {
	var doc Document
	if err := c.patchJSON(ctx, fmt.Sprintf("documents/%d/", id), fields, &doc); err != nil {
		return nil, fmt.Errorf("failed to update document %d: %w", id, err)
	}
	return &doc, nil
}

// DeleteDocument moves a document to the trash.
func (c *Client) DeleteDocument(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("documents/%d/", id), nil, nil, "", nil); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	slog.Info("document moved to trash", "id", id)
	return nil
}

// EmptyTrash permanently purges every trashed document. The service offers no
// scoped purge; callers relying on this after a targeted delete should know
// the purge is global.
func (c *Client) EmptyTrash(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "documents/empty_trash/", nil, nil, "", nil); err != nil {
		return fmt.Errorf("failed to empty trash: %w", err)
	}
	slog.Info("trash emptied")
	return nil
}

// UpdateDocumentPermissionsBatch clears ownership on freshly uploaded
// documents so they are globally readable. Uploads are consumed
// asynchronously, so each receipt is polled for with a fixed delay and a
// bounded number of attempts. No-op unless the client is in global-read mode.
func (c *Client) UpdateDocumentPermissionsBatch(ctx context.Context, receipts []UploadReceipt) PermissionStats {
	var stats PermissionStats

	if !c.globalRead {
		slog.Info("global read disabled, skipping permission updates")
		return stats
	}

	for _, receipt := range receipts {
		found := false

		for attempt := 1; attempt <= c.permissionMaxAttempts; attempt++ {
			slog.Debug("searching for uploaded document",
				"search_term", receipt.SearchTerm, "attempt", attempt, "max_attempts", c.permissionMaxAttempts)

			page, err := c.SearchDocuments(ctx, receipt.SearchTerm)
			if err != nil {
				slog.Warn("document search failed", "search_term", receipt.SearchTerm, "error", err)
				if attempt < c.permissionMaxAttempts {
					if sleepContext(ctx, c.permissionRetryDelay) != nil {
						return stats
					}
				}
				continue
			}

			if page.Count == 0 {
				if attempt < c.permissionMaxAttempts {
					if sleepContext(ctx, c.permissionRetryDelay) != nil {
						return stats
					}
				}
				continue
			}

			docID := page.Results[0].ID
			if _, err := c.UpdateDocument(ctx, docID, map[string]any{"owner": nil}); err != nil {
				slog.Warn("failed to update document permissions", "id", docID, "error", err)
				stats.Failed++
			} else {
				slog.Debug("updated document permissions", "id", docID)
				stats.Updated++
			}
			found = true
			break
		}

		if !found {
			slog.Warn("document not found after retries",
				"search_term", receipt.SearchTerm, "attempts", c.permissionMaxAttempts)
			stats.NotFound++
		}
	}

	return stats
}

// sleepContext waits for the given delay or until the context is cancelled,
// whichever comes first.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
