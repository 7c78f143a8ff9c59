package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caostack/pngx-cao/internal/pngx"
)

// uploadCapture records one multipart upload as seen by the fake server.
type uploadCapture struct {
	Title        string
	Created      string
	DocumentType string
	Serial       string
	TagIDs       []string
	Filename     string
}

// fakeDocServer is an in-memory document service covering the endpoints the
// ingest flow touches. Every request is appended to calls so tests can assert
// on ordering and absence.
type fakeDocServer struct {
	calls []string

	tags       map[string]pngx.Tag
	nextTagID  int
	docTypes   []pngx.DocumentType
	documents  []pngx.Document
	uploads    []uploadCapture
	patches    map[int]map[string]any
	failDelete bool
}

func newFakeDocServer() *fakeDocServer {
	return &fakeDocServer{
		tags:      make(map[string]pngx.Tag),
		nextTagID: 100,
		patches:   make(map[int]map[string]any),
	}
}

func (f *fakeDocServer) addTag(tag pngx.Tag) {
	f.tags[tag.Name] = tag
}

func (f *fakeDocServer) handler(t *testing.T) http.Handler {
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/tags/":
			var results []pngx.Tag
			iexact := r.URL.Query().Get("name__iexact")
			for _, tag := range f.tags {
				if iexact == "" || strings.EqualFold(tag.Name, iexact) {
					results = append(results, tag)
				}
			}
			writeJSON(w, map[string]any{"count": len(results), "results": results})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/tags/"):
			id, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tags/"), "/"))
			require.NoError(t, err)
			for _, tag := range f.tags {
				if tag.ID == id {
					writeJSON(w, tag)
					return
				}
			}
			http.Error(w, "not found", http.StatusNotFound)

		case r.Method == http.MethodPost && r.URL.Path == "/api/tags/":
			var payload pngx.Tag
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.nextTagID++
			payload.ID = f.nextTagID
			f.tags[payload.Name] = payload
			writeJSON(w, payload)

		case r.Method == http.MethodGet && r.URL.Path == "/api/document_types/":
			writeJSON(w, map[string]any{"count": len(f.docTypes), "results": f.docTypes})

		case r.Method == http.MethodPost && r.URL.Path == "/api/document_types/":
			var payload pngx.DocumentType
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			payload.ID = 900 + len(f.docTypes)
			f.docTypes = append(f.docTypes, payload)
			writeJSON(w, payload)

		case r.Method == http.MethodGet && r.URL.Path == "/api/documents/":
			var results []pngx.Document
			iexact := r.URL.Query().Get("title__iexact")
			for _, doc := range f.documents {
				if iexact != "" && strings.EqualFold(doc.Title, iexact) {
					results = append(results, doc)
				}
			}
			writeJSON(w, map[string]any{"count": len(results), "results": results})

		case r.Method == http.MethodPost && r.URL.Path == "/api/documents/post_document/":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			capture := uploadCapture{
				Title:        r.FormValue("title"),
				Created:      r.FormValue("created"),
				DocumentType: r.FormValue("document_type"),
				Serial:       r.FormValue("archive_serial_number"),
				TagIDs:       r.MultipartForm.Value["tags"],
			}
			file, header, err := r.FormFile("document")
			require.NoError(t, err)
			file.Close()
			capture.Filename = header.Filename
			f.uploads = append(f.uploads, capture)
			writeJSON(w, fmt.Sprintf("task-%d", len(f.uploads)))

		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/documents/"):
			if f.failDelete {
				http.Error(w, "delete rejected", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodPost && r.URL.Path == "/api/documents/empty_trash/":
			writeJSON(w, map[string]any{})

		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/api/documents/"):
			id, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/"), "/"))
			require.NoError(t, err)
			fields := make(map[string]any)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
			f.patches[id] = fields
			writeJSON(w, map[string]any{"id": id})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
}

func newController(t *testing.T, fake *fakeDocServer, policy DuplicatePolicy, dryRun bool) *Controller {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := pngx.NewClient(pngx.Options{BaseURL: server.URL, Token: "test"})
	require.NoError(t, err)
	return NewController(client, policy, dryRun)
}

// writeReportFolder lays out a report folder with the given files.
func writeReportFolder(t *testing.T, files map[string]string) string {
	t.Helper()
	folder := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte(content), 0o644))
	}
	return folder
}

const sampleMetadata = `{
	"name": "Big Phish",
	"url": "https://example.com/reports/1",
	"type": {"slug": "intelligence-report"},
	"created_date": 1700000000,
	"actors": [{"name": "MYSTIC UNICORN"}],
	"motivations": ["Espionage"]
}`

const sampleTitle = "Big Phish - https://example.com/reports/1"

func TestArchiveSerial(t *testing.T) {
	assert.Equal(t, 178808133, ArchiveSerial("Threat-Report-2024"))
	assert.Equal(t, 99155867, ArchiveSerial("sample"))
	assert.Equal(t, ArchiveSerial("sample"), ArchiveSerial("sample"))
}

func TestFindPDF(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		folder := writeReportFolder(t, map[string]string{"notes.txt": "x"})
		path, err := findPDF(folder)
		require.NoError(t, err)
		assert.Empty(t, path)
	})

	t.Run("first by name when multiple", func(t *testing.T) {
		folder := writeReportFolder(t, map[string]string{"b.pdf": "x", "a.pdf": "x"})
		path, err := findPDF(folder)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(folder, "a.pdf"), path)
	})

	t.Run("extension is case-insensitive", func(t *testing.T) {
		folder := writeReportFolder(t, map[string]string{"report.PDF": "x"})
		path, err := findPDF(folder)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(folder, "report.PDF"), path)
	})
}

func TestProcessFolder(t *testing.T) {
	t.Run("no PDF fails", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{"notes.txt": "x"})
		result := controller.ProcessFolder(context.Background(), folder)
		assert.Equal(t, Result{Outcome: OutcomeFailed, Reason: "no_pdf"}, result)
		assert.Empty(t, fake.calls)
	})

	t.Run("empty PDF skipped", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{"report.pdf": ""})
		result := controller.ProcessFolder(context.Background(), folder)
		assert.Equal(t, Result{Outcome: OutcomeSkipped, Reason: "empty_file"}, result)
		assert.Empty(t, fake.calls)
	})

	t.Run("no sidecar uploads with base filename title", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{"report.pdf": "%PDF"})
		result := controller.ProcessFolder(context.Background(), folder)

		assert.Equal(t, OutcomeUploaded, result.Outcome)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, "report", result.Receipt.SearchTerm)

		require.Len(t, fake.uploads, 1)
		assert.Equal(t, "report", fake.uploads[0].Title)
		assert.Equal(t, "report.pdf", fake.uploads[0].Filename)
		assert.Empty(t, fake.uploads[0].Created)
		assert.Empty(t, fake.uploads[0].Serial)
	})

	t.Run("malformed sidecar fails", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": "{broken",
		})
		result := controller.ProcessFolder(context.Background(), folder)
		assert.Equal(t, Result{Outcome: OutcomeFailed, Reason: "malformed_metadata"}, result)
		assert.Empty(t, fake.calls)
	})

	t.Run("dry run stops before any request", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, true)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)
		assert.Equal(t, Result{Outcome: OutcomeSkipped, Reason: "dry_run"}, result)
		assert.Empty(t, fake.calls)
	})

	t.Run("full upload with metadata", func(t *testing.T) {
		fake := newFakeDocServer()
		fake.addTag(pngx.Tag{ID: 50, Name: "UNICORN", Color: "#3a86ff"})
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)

		assert.Equal(t, OutcomeUploaded, result.Outcome)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, "report", result.Receipt.SearchTerm)
		assert.Equal(t, sampleTitle, result.Receipt.Title)

		require.Len(t, fake.uploads, 1)
		upload := fake.uploads[0]
		assert.Equal(t, sampleTitle, upload.Title)
		assert.Equal(t, "2023-11-14", upload.Created)
		assert.Equal(t, strconv.Itoa(ArchiveSerial("report")), upload.Serial)
		assert.Len(t, upload.TagIDs, 2, "actor and motivation")

		// The document type was created on the fly.
		require.Len(t, fake.docTypes, 1)
		assert.Equal(t, "intelligence-report", fake.docTypes[0].Name)
		assert.Equal(t, strconv.Itoa(fake.docTypes[0].ID), upload.DocumentType)

		// The actor tag inherits parent and color from its group tag.
		actorTag, ok := fake.tags["MYSTIC UNICORN"]
		require.True(t, ok)
		assert.Equal(t, "#3a86ff", actorTag.Color)
		require.NotNil(t, actorTag.Parent)
		assert.Equal(t, 50, *actorTag.Parent)
		assert.Equal(t, pngx.MatchLiteral, actorTag.MatchingAlgorithm)
	})

	t.Run("missing group tag created under actor root", func(t *testing.T) {
		fake := newFakeDocServer()
		fake.addTag(pngx.Tag{ID: 5, Name: "actor", Color: "#dd00ff"})
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)
		assert.Equal(t, OutcomeUploaded, result.Outcome)

		group, ok := fake.tags["UNICORN"]
		require.True(t, ok)
		require.NotNil(t, group.Parent)
		assert.Equal(t, 5, *group.Parent)
		assert.Equal(t, "#8338ec", group.Color)

		actorTag := fake.tags["MYSTIC UNICORN"]
		require.NotNil(t, actorTag.Parent)
		assert.Equal(t, group.ID, *actorTag.Parent)
		assert.Equal(t, group.Color, actorTag.Color)
	})

	t.Run("duplicate with skip policy", func(t *testing.T) {
		fake := newFakeDocServer()
		fake.documents = []pngx.Document{{ID: 42, Title: sampleTitle}}
		controller := newController(t, fake, DuplicateSkip, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)

		assert.Equal(t, OutcomeSkipped, result.Outcome)
		assert.Equal(t, "duplicate", result.Reason)
		assert.Equal(t, 42, result.DocumentID)
		assert.Empty(t, fake.uploads)
		assert.NotContains(t, fake.calls, "DELETE /api/documents/42/")
	})

	t.Run("duplicate with replace policy deletes then purges then uploads", func(t *testing.T) {
		fake := newFakeDocServer()
		fake.documents = []pngx.Document{{ID: 42, Title: sampleTitle}}
		controller := newController(t, fake, DuplicateReplace, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)

		assert.Equal(t, OutcomeUploaded, result.Outcome)
		require.Len(t, fake.uploads, 1)

		deleteIdx := indexOf(fake.calls, "DELETE /api/documents/42/")
		trashIdx := indexOf(fake.calls, "POST /api/documents/empty_trash/")
		uploadIdx := indexOf(fake.calls, "POST /api/documents/post_document/")
		require.GreaterOrEqual(t, deleteIdx, 0)
		require.GreaterOrEqual(t, trashIdx, 0)
		require.GreaterOrEqual(t, uploadIdx, 0)
		assert.Less(t, deleteIdx, trashIdx)
		assert.Less(t, trashIdx, uploadIdx)
	})

	t.Run("replace aborts when delete fails", func(t *testing.T) {
		fake := newFakeDocServer()
		fake.documents = []pngx.Document{{ID: 42, Title: sampleTitle}}
		fake.failDelete = true
		controller := newController(t, fake, DuplicateReplace, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)

		assert.Equal(t, OutcomeFailed, result.Outcome)
		assert.Equal(t, "delete_error", result.Reason)
		assert.Empty(t, fake.uploads)
		assert.NotContains(t, fake.calls, "POST /api/documents/empty_trash/")
	})

	t.Run("duplicate with update-metadata policy patches in place", func(t *testing.T) {
		fake := newFakeDocServer()
		fake.documents = []pngx.Document{{ID: 42, Title: sampleTitle}}
		controller := newController(t, fake, DuplicateUpdateMetadata, false)

		folder := writeReportFolder(t, map[string]string{
			"report.pdf":  "%PDF",
			"report.json": sampleMetadata,
		})
		result := controller.ProcessFolder(context.Background(), folder)

		assert.Equal(t, OutcomeUpdated, result.Outcome)
		assert.Equal(t, 42, result.DocumentID)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, sampleTitle, result.Receipt.SearchTerm, "updates are searched by full title")

		assert.Empty(t, fake.uploads)
		fields, ok := fake.patches[42]
		require.True(t, ok)
		assert.Equal(t, "2023-11-14", fields["created_date"])
		assert.Contains(t, fields, "tags")
		assert.Contains(t, fields, "document_type")
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	assert.Equal(t, DuplicateSkip, ParseDuplicatePolicy(""))
	assert.Equal(t, DuplicateSkip, ParseDuplicatePolicy("bogus"))
	assert.Equal(t, DuplicateReplace, ParseDuplicatePolicy("Replace"))
	assert.Equal(t, DuplicateUpdateMetadata, ParseDuplicatePolicy(" update-metadata "))
}

func TestProcessBatch(t *testing.T) {
	t.Run("counts outcomes per folder", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "good"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "good", "report.pdf"), []byte("%PDF"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "broken", "notes.txt"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

		stats, err := controller.ProcessBatch(context.Background(), root, "")
		require.NoError(t, err)
		assert.Equal(t, BatchStats{Uploaded: 1, Failed: 1}, stats)
	})

	t.Run("folder filter", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "good"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "good", "report.pdf"), []byte("%PDF"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "other"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "other", "report.pdf"), []byte("%PDF"), 0o644))

		stats, err := controller.ProcessBatch(context.Background(), root, "good")
		require.NoError(t, err)
		assert.Equal(t, BatchStats{Uploaded: 1}, stats)
		assert.Len(t, fake.uploads, 1)
	})

	t.Run("missing directory", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		_, err := controller.ProcessBatch(context.Background(), filepath.Join(t.TempDir(), "absent"), "")
		assert.ErrorContains(t, err, "directory not found")
	})

	t.Run("missing filter folder", func(t *testing.T) {
		fake := newFakeDocServer()
		controller := newController(t, fake, DuplicateSkip, false)

		_, err := controller.ProcessBatch(context.Background(), t.TempDir(), "absent")
		assert.ErrorContains(t, err, "folder not found")
	})
}

func indexOf(calls []string, want string) int {
	for i, call := range calls {
		if call == want {
			return i
		}
	}
	return -1
}
