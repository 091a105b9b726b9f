package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptliano/promptliano/internal/models"
)

func TestResourcesListIncludesProjectEntries(t *testing.T) {
	s, _ := newTestServer(t)
	p := seedProject(t, s)

	result := s.handleResourcesList(context.Background()).(map[string]interface{})
	resources := result["resources"].([]ResourceDescriptor)

	uris := make(map[string]bool, len(resources))
	for _, r := range resources {
		uris[r.URI] = true
	}
	assert.True(t, uris["promptliano://projects"])
	assert.True(t, uris[fmt.Sprintf("promptliano://projects/%d/summary", p.ID)])
	assert.True(t, uris[fmt.Sprintf("promptliano://projects/%d/files", p.ID)])
}

func TestResourcesListAddsSessionProjectFiles(t *testing.T) {
	s, _ := newTestServer(t)
	p := seedProject(t, s)

	sess := s.Sessions().Create(TransportHTTP, &p.ID, nil, ClientInfo{})
	ctx := WithSession(context.Background(), sess)

	result := s.handleResourcesList(ctx).(map[string]interface{})
	resources := result["resources"].([]ResourceDescriptor)

	var fileURIs []string
	for _, r := range resources {
		if r.Name == "README.md" || r.Name == "src/index.ts" {
			fileURIs = append(fileURIs, r.URI)
		}
	}
	assert.Len(t, fileURIs, 2)
}

func readResource(t *testing.T, s *Server, uri string) ([]ResourceContent, *RPCError) {
	t.Helper()
	params, _ := json.Marshal(map[string]string{"uri": uri})
	result, rpcErr := s.handleResourcesRead(context.Background(), params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	contents := result.(map[string]interface{})["contents"].([]ResourceContent)
	return contents, nil
}

func TestReadProjectsResource(t *testing.T) {
	s, _ := newTestServer(t)
	p := seedProject(t, s)

	contents, rpcErr := readResource(t, s, "promptliano://projects")
	require.Nil(t, rpcErr)
	require.Len(t, contents, 1)
	assert.Equal(t, "application/json", contents[0].MimeType)

	var projects []*models.Project
	require.NoError(t, json.Unmarshal([]byte(contents[0].Text), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)
}

func TestReadFileResourceCarriesMime(t *testing.T) {
	s, _ := newTestServer(t)
	p := seedProject(t, s)
	f, err := s.store.GetFileByPath(context.Background(), p.ID, "README.md")
	require.NoError(t, err)

	contents, rpcErr := readResource(t, s, fmt.Sprintf("promptliano://projects/%d/files/%d", p.ID, f.ID))
	require.Nil(t, rpcErr)
	require.Len(t, contents, 1)
	assert.Equal(t, "text/markdown", contents[0].MimeType)
	assert.Equal(t, "# Demo\n", contents[0].Text)
}

func TestReadProjectSummary(t *testing.T) {
	s, _ := newTestServer(t)
	p := seedProject(t, s)

	contents, rpcErr := readResource(t, s, fmt.Sprintf("promptliano://projects/%d/summary", p.ID))
	require.Nil(t, rpcErr)
	require.Len(t, contents, 1)
	assert.Equal(t, "text/plain", contents[0].MimeType)
	assert.NotEmpty(t, contents[0].Text)

	// The second read is served from the summary cache and must match.
	again, rpcErr := readResource(t, s, fmt.Sprintf("promptliano://projects/%d/summary", p.ID))
	require.Nil(t, rpcErr)
	assert.Equal(t, contents[0].Text, again[0].Text)
}

func TestReadUnknownResourcePath(t *testing.T) {
	s, _ := newTestServer(t)
	for _, uri := range []string{
		"promptliano://nope",
		"promptliano://projects/1/unknown",
		"weird://thing",
	} {
		_, rpcErr := readResource(t, s, uri)
		require.NotNil(t, rpcErr, "uri %s", uri)
		assert.Equal(t, CodeInvalidParams, rpcErr.Code, "uri %s", uri)
	}
}

func TestMimeForExtension(t *testing.T) {
	cases := map[string]string{
		"json": "application/json",
		"md":   "text/markdown",
		".md":  "text/markdown",
		"ts":   "text/javascript",
		"go":   "text/plain",
		"":     "text/plain",
	}
	for ext, want := range cases {
		assert.Equal(t, want, mimeForExtension(ext), "ext %q", ext)
	}
}

func TestFilesetFingerprintIsOrderInsensitive(t *testing.T) {
	a := &models.File{ID: 1, Size: 10, Path: "a.go"}
	b := &models.File{ID: 2, Size: 20, Path: "b.go"}

	assert.Equal(t,
		filesetFingerprint([]*models.File{a, b}),
		filesetFingerprint([]*models.File{b, a}))

	// A size change must change the fingerprint.
	grown := &models.File{ID: 1, Size: 11, Path: "a.go"}
	assert.NotEqual(t,
		filesetFingerprint([]*models.File{a, b}),
		filesetFingerprint([]*models.File{grown, b}))
}
