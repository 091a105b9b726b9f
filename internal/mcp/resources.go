package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promptliano/promptliano/internal/llm"
	"github.com/promptliano/promptliano/internal/models"
)

const (
	builtinScheme  = "promptliano://"
	externalScheme = "external://"
)

// mimeForExtension infers the MIME type served by resources/read.
func mimeForExtension(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "json":
		return "application/json"
	case "md", "markdown":
		return "text/markdown"
	case "js", "ts", "jsx", "tsx":
		return "text/javascript"
	default:
		return "text/plain"
	}
}

func (s *Server) handleResourcesList(ctx context.Context) interface{} {
	resources := []ResourceDescriptor{
		{
			URI:         "promptliano://projects",
			Name:        "All Projects",
			Description: "List of all projects",
			MimeType:    "application/json",
		},
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		s.log.Warn("resources/list: failed to list projects", zap.Error(err))
		projects = nil
	}
	for _, p := range projects {
		base := fmt.Sprintf("promptliano://projects/%d", p.ID)
		resources = append(resources,
			ResourceDescriptor{
				URI:         base + "/summary",
				Name:        p.Name + " Summary",
				Description: "Compact project summary",
				MimeType:    "text/plain",
			},
			ResourceDescriptor{
				URI:         base + "/files",
				Name:        p.Name + " Files",
				Description: "File metadata for " + p.Name,
				MimeType:    "application/json",
			},
		)
	}

	// Up to 10 file resources for the session's active project.
	if sess := SessionFrom(ctx); sess != nil && sess.ProjectID != nil {
		files, err := s.store.ListFiles(ctx, *sess.ProjectID)
		if err == nil {
			if len(files) > 10 {
				files = files[:10]
			}
			for _, f := range files {
				resources = append(resources, ResourceDescriptor{
					URI:      fmt.Sprintf("promptliano://projects/%d/files/%d", *sess.ProjectID, f.ID),
					Name:     f.Path,
					MimeType: mimeForExtension(f.Extension),
				})
			}
		}
		for _, er := range s.external.ListAllResources(ctx, *sess.ProjectID) {
			resources = append(resources, ResourceDescriptor{
				URI:         externalScheme + er.URI,
				Name:        er.Name,
				Description: er.Description,
				MimeType:    er.MimeType,
			})
		}
	}
	return map[string]interface{}{"resources": resources}
}

func (s *Server) handleResourcesRead(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.URI == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "resources/read requires a uri"}
	}

	switch {
	case strings.HasPrefix(p.URI, externalScheme):
		return s.readExternalResource(ctx, p.URI)
	case strings.HasPrefix(p.URI, builtinScheme):
		return s.readBuiltinResource(ctx, p.URI)
	default:
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown resource scheme: %s", p.URI)}
	}
}

func (s *Server) readBuiltinResource(ctx context.Context, uri string) (interface{}, *RPCError) {
	segments := strings.Split(strings.TrimSuffix(strings.TrimPrefix(uri, builtinScheme), "/"), "/")

	invalid := func(format string, args ...interface{}) *RPCError {
		return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
	}
	contents := func(mime, text string) interface{} {
		return map[string]interface{}{
			"contents": []ResourceContent{{URI: uri, MimeType: mime, Text: text}},
		}
	}

	if len(segments) == 0 || segments[0] != "projects" {
		return nil, invalid("unknown resource path: %s", uri)
	}

	// promptliano://projects
	if len(segments) == 1 {
		projects, err := s.store.ListProjects(ctx)
		if err != nil {
			return nil, &RPCError{Code: CodeInternalError, Message: "failed to list projects", Data: err.Error()}
		}
		data, err := json.MarshalIndent(projects, "", "  ")
		if err != nil {
			return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
		}
		return contents("application/json", string(data)), nil
	}

	projectID, err := strconv.ParseInt(segments[1], 10, 64)
	if err != nil {
		return nil, invalid("invalid project id in uri: %s", uri)
	}
	if len(segments) < 3 {
		return nil, invalid("unknown resource path: %s", uri)
	}

	switch segments[2] {
	case "summary":
		if len(segments) != 3 {
			return nil, invalid("unknown resource path: %s", uri)
		}
		text, serr := s.projectSummary(ctx, projectID, llm.SummaryOptions{})
		if serr != nil {
			return nil, invalid("failed to summarize project %d: %v", projectID, serr)
		}
		return contents("text/plain", text), nil

	case "files":
		files, ferr := s.store.ListFiles(ctx, projectID)
		if ferr != nil {
			return nil, invalid("failed to list files for project %d: %v", projectID, ferr)
		}
		if len(segments) == 3 {
			meta := make([]map[string]interface{}, 0, len(files))
			for _, f := range files {
				meta = append(meta, map[string]interface{}{
					"id":        f.ID,
					"path":      f.Path,
					"name":      f.Name,
					"extension": f.Extension,
					"size":      f.Size,
					"summary":   f.Summary,
				})
			}
			data, merr := json.MarshalIndent(meta, "", "  ")
			if merr != nil {
				return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
			}
			return contents("application/json", string(data)), nil
		}
		if len(segments) == 4 {
			fileID, perr := strconv.ParseInt(segments[3], 10, 64)
			if perr != nil {
				return nil, invalid("invalid file id in uri: %s", uri)
			}
			f, gerr := s.store.GetFile(ctx, projectID, fileID)
			if gerr != nil {
				return nil, invalid("file %d not found in project %d", fileID, projectID)
			}
			return contents(mimeForExtension(f.Extension), f.Content), nil
		}
		return nil, invalid("unknown resource path: %s", uri)

	case "suggest-files":
		return contents("text/plain",
			"File suggestions are provided by the suggest_files action of the project_manager tool. "+
				"Call tools/call with {\"name\": \"project_manager\", \"arguments\": {\"action\": \"suggest_files\", "+
				"\"projectId\": "+strconv.FormatInt(projectID, 10)+", \"data\": {\"prompt\": \"...\"}}}."), nil

	default:
		return nil, invalid("unknown resource path: %s", uri)
	}
}

func (s *Server) readExternalResource(ctx context.Context, uri string) (interface{}, *RPCError) {
	pid := int64(0)
	if sess := SessionFrom(ctx); sess != nil && sess.ProjectID != nil {
		pid = *sess.ProjectID
	}
	content, err := s.external.ReadResource(ctx, pid, strings.TrimPrefix(uri, externalScheme))
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("external resource read failed: %v", err)}
	}
	return map[string]interface{}{
		"contents": []ResourceContent{{URI: uri, MimeType: content.MimeType, Text: content.Text}},
	}, nil
}

// projectSummary computes or reuses a cached project summary. The
// cache key covers the project, the summary options and a fingerprint
// of the file set, so file changes invalidate naturally.
func (s *Server) projectSummary(ctx context.Context, projectID int64, opts llm.SummaryOptions) (string, error) {
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return "", err
	}
	key := summaryKey{
		projectID:   projectID,
		optsPrint:   opts.Fingerprint(),
		filesetHash: filesetFingerprint(files),
	}
	if text, ok := s.summaries.get(key); ok {
		return text, nil
	}
	text, err := s.llm.CompactSummary(ctx, projectID, opts)
	if err != nil {
		return "", err
	}
	s.summaries.put(key, text)
	return text, nil
}

func filesetFingerprint(files []*models.File) uint64 {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, fmt.Sprintf("%d:%d:%s", f.ID, f.Size, f.Path))
	}
	sort.Strings(ids)
	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

type summaryKey struct {
	projectID   int64
	optsPrint   string
	filesetHash uint64
}

type summaryEntry struct {
	text    string
	expires time.Time
}

// summaryCache memoizes expensive summary computation. Conservative
// TTL in addition to fileset fingerprinting.
type summaryCache struct {
	mu      sync.Mutex
	entries map[summaryKey]summaryEntry
	ttl     time.Duration
}

func newSummaryCache() *summaryCache {
	return &summaryCache{
		entries: make(map[summaryKey]summaryEntry),
		ttl:     15 * time.Minute,
	}
}

func (c *summaryCache) get(key summaryKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.text, true
}

func (c *summaryCache) put(key summaryKey, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = summaryEntry{text: text, expires: time.Now().Add(c.ttl)}
}
