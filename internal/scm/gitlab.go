// Package scm integrates the review pipeline with merge request events
// from a GitLab-style source code platform.
package scm

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ChangedFile is one file touched by a merge request.
type ChangedFile struct {
	Path    string
	Deleted bool
}

// Platform abstracts the hosting platform calls the analyzer needs.
type Platform interface {
	MergeRequestOpen(ctx context.Context, projectID int, mrIID int) (bool, error)
	ChangedFiles(ctx context.Context, projectID int, mrIID int) ([]ChangedFile, error)
	FileContent(ctx context.Context, projectID int, path, ref string) (string, error)
	UpsertComment(ctx context.Context, projectID int, mrIID int, marker, body string) error
}

// GitLabPlatform implements Platform on the GitLab REST API.
type GitLabPlatform struct {
	client *gitlab.Client
}

func NewGitLabPlatform(token, baseURL string) (*GitLabPlatform, error) {
	var client *gitlab.Client
	var err error
	if strings.TrimSpace(baseURL) == "" {
		client, err = gitlab.NewClient(token)
	} else {
		apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
	}
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &GitLabPlatform{client: client}, nil
}

func (p *GitLabPlatform) MergeRequestOpen(ctx context.Context, projectID int, mrIID int) (bool, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequest(projectID, int64(mrIID), nil, gitlab.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("fetching merge request: %w", err)
	}
	return mr.State == "opened", nil
}

func (p *GitLabPlatform) ChangedFiles(ctx context.Context, projectID int, mrIID int) ([]ChangedFile, error) {
	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var files []ChangedFile
	for {
		diffs, resp, err := p.client.MergeRequests.ListMergeRequestDiffs(projectID, int64(mrIID), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetching merge request diffs: %w", err)
		}
		for _, d := range diffs {
			files = append(files, ChangedFile{
				Path:    d.NewPath,
				Deleted: d.DeletedFile,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (p *GitLabPlatform) FileContent(ctx context.Context, projectID int, path, ref string) (string, error) {
	raw, _, err := p.client.RepositoryFiles.GetRawFile(projectID, path, &gitlab.GetRawFileOptions{
		Ref: gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching file %s at %s: %w", path, ref, err)
	}
	return string(raw), nil
}

// UpsertComment creates the review comment on the merge request, or
// updates the existing one identified by marker so repeated pushes do
// not pile up comments.
func (p *GitLabPlatform) UpsertComment(ctx context.Context, projectID int, mrIID int, marker, body string) error {
	opts := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		notes, resp, err := p.client.Notes.ListMergeRequestNotes(projectID, int64(mrIID), opts, gitlab.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("listing merge request notes: %w", err)
		}
		for _, n := range notes {
			if strings.Contains(n.Body, marker) {
				_, _, err := p.client.Notes.UpdateMergeRequestNote(projectID, int64(mrIID), n.ID, &gitlab.UpdateMergeRequestNoteOptions{
					Body: gitlab.Ptr(body),
				}, gitlab.WithContext(ctx))
				if err != nil {
					return fmt.Errorf("updating merge request note: %w", err)
				}
				return nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	_, _, err := p.client.Notes.CreateMergeRequestNote(projectID, int64(mrIID), &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("creating merge request note: %w", err)
	}
	return nil
}
